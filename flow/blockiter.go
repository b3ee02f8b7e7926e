/*
 * Copyright 2023 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package flow

import (
    `github.com/oleiade/lane`
)

// BasicBlockIter walks the arena in depth-first post-order starting
// from the root block.
type BasicBlockIter struct {
    g *CFG
    b *BasicBlock
    s *lane.Stack
    v map[int]struct{}
}

func newBasicBlockIter(cfg *CFG) *BasicBlockIter {
    s := lane.NewStack()
    s.Push(cfg.Blocks[cfg.Root])
    return &BasicBlockIter {
        g: cfg,
        s: s,
        v: map[int]struct{} { cfg.Root: {} },
    }
}

func (self *BasicBlockIter) Next() bool {
    var tail bool
    var this *BasicBlock

    /* scan until the stack is empty */
    for !self.s.Empty() {
        tail = true
        this = self.s.Head().(*BasicBlock)

        /* add the first unvisited successor */
        for _, s := range this.Succ {
            if _, ok := self.v[s]; !ok {
                tail = false
                self.v[s] = struct{}{}
                self.s.Push(self.g.Blocks[s])
                break
            }
        }

        /* all the successors are visited, pop the current node */
        if tail {
            self.b = self.s.Pop().(*BasicBlock)
            return true
        }
    }

    /* clear the basic block pointer to indicate no more blocks */
    self.b = nil
    return false
}

func (self *BasicBlockIter) Block() *BasicBlock {
    return self.b
}

func (self *BasicBlockIter) ForEach(action func(bb *BasicBlock)) {
    for self.Next() {
        action(self.b)
    }
}

func (self *BasicBlockIter) Reversed() []*BasicBlock {
    nb := len(self.g.Blocks)
    ret := make([]*BasicBlock, 0, nb)

    /* dump all the blocks */
    for self.Next() {
        ret = append(ret, self.b)
    }

    /* reverse the order */
    for i, j := 0, len(ret) - 1; i < j; i, j = i + 1, j - 1 {
        ret[i], ret[j] = ret[j], ret[i]
    }
    return ret
}

// PostOrder visits every reachable block in depth-first post-order.
func (self *CFG) PostOrder(action func(bb *BasicBlock)) {
    newBasicBlockIter(self).ForEach(action)
}

// ReversePostOrder visits every reachable block parents-first.
func (self *CFG) ReversePostOrder(action func(bb *BasicBlock)) {
    for _, bb := range newBasicBlockIter(self).Reversed() {
        action(bb)
    }
}
