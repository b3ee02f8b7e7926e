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
    `math`
    `sort`

    `github.com/cloudwego/movopt/mir`
)

// BasicBlock is a maximal straight-line run of instructions. Blocks
// live in an index-addressed arena, successors and predecessors are
// block indices so back-edges carry no ownership semantics.
type BasicBlock struct {
    Id   int
    Off  int
    Ins  []mir.Instr
    Succ []int
    Pred []int
}

// End returns the instruction index one past the block body.
func (self *BasicBlock) End() int {
    return self.Off + len(self.Ins)
}

type CFG struct {
    Fn     *mir.Function
    Root   int
    Blocks []*BasicBlock
    dist   [][]uint64
}

func isTerminator(p mir.Instr) bool {
    _, ok := p.(mir.Terminator)
    return ok
}

// BuildCFG splits the function body into basic blocks. Every branch
// target begins a block, every block ends with a terminator or falls
// through to the next block (materialized as an unconditional edge).
func BuildCFG(fn *mir.Function) (*CFG, error) {
    if len(fn.Code) == 0 {
        return nil, mir.IRValidationError {
            Func   : fn.Name,
            Index  : -1,
            Temp   : -1,
            Reason : "empty function body",
        }
    }

    /* resolve every branch target up front, undefined labels are the
     * caller's bug, not ours to guess around */
    target := func(idx int, name string) (int, error) {
        i, ok := fn.Labels[name]
        if !ok || i >= len(fn.Code) {
            return 0, mir.IRValidationError {
                Func   : fn.Name,
                Index  : idx,
                Temp   : -1,
                Reason : "branch to undefined label " + name,
            }
        }
        return i, nil
    }

    /* mark the block leaders */
    leader := make(map[int]bool, len(fn.Code))
    leader[0] = true

    for i, p := range fn.Code {
        switch v := p.(type) {
            case *mir.IrBranch: {
                t, err := target(i, v.To)
                if err != nil {
                    return nil, err
                }
                leader[t] = true
                leader[i + 1] = true
            }
            case *mir.IrCondBranch: {
                t, err := target(i, v.T)
                if err != nil {
                    return nil, err
                }
                f, err := target(i, v.F)
                if err != nil {
                    return nil, err
                }
                leader[t] = true
                leader[f] = true
                leader[i + 1] = true
            }
            case *mir.IrReturn: leader[i + 1] = true
            case *mir.IrAbort : leader[i + 1] = true
        }
    }

    /* cut the body at the leaders */
    offs := make([]int, 0, len(leader))
    for i := range leader {
        if i < len(fn.Code) {
            offs = append(offs, i)
        }
    }
    sort.Ints(offs)

    /* build the block arena */
    ret := &CFG { Fn: fn, Root: 0 }
    blockof := make([]int, len(fn.Code))

    for bi, off := range offs {
        end := len(fn.Code)
        if bi + 1 < len(offs) {
            end = offs[bi + 1]
        }
        for i := off; i < end; i++ {
            blockof[i] = bi
        }
        ret.Blocks = append(ret.Blocks, &BasicBlock {
            Id  : bi,
            Off : off,
            Ins : fn.Code[off:end],
        })
    }

    /* connect the successor edges */
    for _, bb := range ret.Blocks {
        last := bb.Ins[len(bb.Ins) - 1]
        switch v := last.(type) {
            case *mir.IrBranch: {
                bb.Succ = []int { blockof[fn.Labels[v.To]] }
            }
            case *mir.IrCondBranch: {
                t := blockof[fn.Labels[v.T]]
                f := blockof[fn.Labels[v.F]]
                if t == f {
                    bb.Succ = []int { t }
                } else {
                    bb.Succ = []int { t, f }
                }
            }
            case *mir.IrReturn:
                /* no successors */
            case *mir.IrAbort:
                /* no successors */
            default: {
                if bb.Id + 1 >= len(ret.Blocks) {
                    return nil, mir.IRValidationError {
                        Func   : fn.Name,
                        Index  : bb.End() - 1,
                        Temp   : -1,
                        Reason : "function falls off the end without a terminator",
                    }
                }
                bb.Succ = []int { bb.Id + 1 }
            }
        }
    }

    /* derive the predecessor edges */
    for _, bb := range ret.Blocks {
        for _, s := range bb.Succ {
            ret.Blocks[s].Pred = append(ret.Blocks[s].Pred, bb.Id)
        }
    }

    /* precompute block-to-block reachability */
    ret.buildReachability()
    return ret, nil
}

// BlockOf returns the block containing instruction index i.
func (self *CFG) BlockOf(i int) *BasicBlock {
    for _, bb := range self.Blocks {
        if i >= bb.Off && i < bb.End() {
            return bb
        }
    }
    panic("instruction index out of range")
}

// Reachable reports whether some non-empty control-flow path leads from
// block a to block b. For a == b this asks for a cycle through a.
func (self *CFG) Reachable(a int, b int) bool {
    return self.dist[a][b] != _D_unreachable
}

const (
    _D_unreachable = math.MaxUint64 >> 1
)

func (self *CFG) buildReachability() {
    nb := len(self.Blocks)
    self.dist = make([][]uint64, nb)

    /* initialize each row */
    for i := range self.dist {
        self.dist[i] = make([]uint64, nb)
        for j := range self.dist[i] {
            self.dist[i][j] = _D_unreachable
        }
    }

    /* add every edge; self-distance stays unreachable unless an actual
     * cycle closes it */
    for _, bb := range self.Blocks {
        for _, s := range bb.Succ {
            self.dist[bb.Id][s] = 1
        }
    }

    /* Floyd-Warshall algorithm */
    for k := 0; k < nb; k++ {
        for i := 0; i < nb; i++ {
            for j := 0; j < nb; j++ {
                if d := self.dist[i][k] + self.dist[k][j]; d < self.dist[i][j] {
                    self.dist[i][j] = d
                }
            }
        }
    }
}
