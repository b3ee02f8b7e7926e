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
    `fmt`
    `sort`

    `github.com/cloudwego/movopt/mir`
    `github.com/oleiade/lane`
)

// DefSet maps a temporary to the set of instruction indices that may
// have defined it. Negative indices are synthetic entry definitions
// (parameter bindings). DefSet is the lattice element of every analysis
// in this package: ordered by inclusion, joined by union, its height is
// bounded by the number of definition sites.
type DefSet map[mir.Temp]map[int]struct{}

func (self DefSet) Gen(t mir.Temp, idx int) {
    if s, ok := self[t]; ok {
        s[idx] = struct{}{}
    } else {
        self[t] = map[int]struct{} { idx: {} }
    }
}

func (self DefSet) Kill(t mir.Temp) {
    delete(self, t)
}

// Defs returns the definition sites of t in ascending order.
func (self DefSet) Defs(t mir.Temp) []int {
    s := self[t]
    if len(s) == 0 {
        return nil
    }
    r := make([]int, 0, len(s))
    for i := range s { r = append(r, i) }
    sort.Ints(r)
    return r
}

func (self DefSet) Clone() DefSet {
    r := make(DefSet, len(self))
    for t, s := range self {
        m := make(map[int]struct{}, len(s))
        for i := range s { m[i] = struct{}{} }
        r[t] = m
    }
    return r
}

// Union folds other into self.
func (self DefSet) Union(other DefSet) {
    for t, s := range other {
        for i := range s {
            self.Gen(t, i)
        }
    }
}

func (self DefSet) Equals(other DefSet) bool {
    if len(self) != len(other) {
        return false
    }
    for t, s := range self {
        o, ok := other[t]
        if !ok || len(o) != len(s) {
            return false
        }
        for i := range s {
            if _, ok := o[i]; !ok {
                return false
            }
        }
    }
    return true
}

// Transfer maps a block's incoming state to its outgoing state. It must
// be monotone for the fixed-point iteration to converge.
type Transfer func(bb *BasicBlock, in DefSet) DefSet

// Join combines a predecessor's outgoing state into the accumulator.
type Join func(dst DefSet, src DefSet)

// Forward is a forward fixed-point engine over DefSet states. The
// worklist is drained FIFO; drain order only affects convergence speed,
// never the fixed point itself.
type Forward struct {
    Transfer Transfer
    Join     Join
}

// Convergence is guaranteed by lattice height, the bound only catches a
// broken (non-monotone) transfer function.
const _MaxFixpointFactor = 4

// InternalAnalysisError occurs when the fixed-point iteration fails to
// converge within the defensive bound. It indicates a bug in a transfer
// function, not in the analyzed program.
type InternalAnalysisError struct {
    Func       string
    Iterations int
}

func (self InternalAnalysisError) Error() string {
    return fmt.Sprintf("InternalAnalysisError(%s): fixed-point iteration did not converge after %d steps", self.Func, self.Iterations)
}

// Run iterates to a fixed point and returns the outgoing state of every
// block. The entry state is injected into the root block's input.
func (self Forward) Run(cfg *CFG, entry DefSet) ([]DefSet, error) {
    nb := len(cfg.Blocks)
    out := make([]DefSet, nb)
    bound := (len(cfg.Fn.Code) + 1) * nb * _MaxFixpointFactor

    /* seed every block as unprocessed, parents first for fast convergence */
    q := lane.NewQueue()
    queued := make([]bool, nb)

    cfg.ReversePostOrder(func(bb *BasicBlock) {
        q.Enqueue(bb.Id)
        queued[bb.Id] = true
    })

    /* worklist iteration */
    for steps := 0; !q.Empty(); steps++ {
        if steps > bound {
            return nil, InternalAnalysisError {
                Func       : cfg.Fn.Name,
                Iterations : steps,
            }
        }

        /* pop the next block */
        id := q.Dequeue().(int)
        bb := cfg.Blocks[id]
        queued[id] = false

        /* join the predecessor outputs */
        in := make(DefSet)
        if id == cfg.Root {
            in = entry.Clone()
        }
        for _, p := range bb.Pred {
            if out[p] != nil {
                self.Join(in, out[p])
            }
        }

        /* recompute the output, re-enqueue the successors on change */
        if nv := self.Transfer(bb, in); out[id] == nil || !out[id].Equals(nv) {
            out[id] = nv
            for _, s := range bb.Succ {
                if !queued[s] {
                    queued[s] = true
                    q.Enqueue(s)
                }
            }
        }
    }
    return out, nil
}
