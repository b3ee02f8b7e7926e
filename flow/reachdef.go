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
    `github.com/cloudwego/movopt/mir`
)

// ReachingDefs holds, for every instruction index, the definition sets
// flowing into and out of it. Entry bindings of parameters are the
// synthetic sites -1, -2, ... in parameter order.
type ReachingDefs struct {
    Fn  *mir.Function
    In  []DefSet
    Out []DefSet
    cfg *CFG
}

// EntrySite returns the synthetic definition site of the i-th parameter.
func EntrySite(i int) int {
    return -(i + 1)
}

// consumedUses returns the operands taken by value at p. Linear
// operands among them have their bindings consumed.
func consumedUses(p mir.Instr) []mir.Temp {
    switch v := p.(type) {
        case *mir.IrMove   : return []mir.Temp { v.S }
        case *mir.IrPack   : return v.In
        case *mir.IrUnpack : return []mir.Temp { v.S }
        case *mir.IrCall   : return v.In
        case *mir.IrReturn : return v.Rs
        case *mir.IrAbort  : return []mir.Temp { v.V }
        default            : return nil
    }
}

// step applies the effect of instruction idx to the state in place:
// consuming uses of linear temporaries kill the consumed binding, then
// every destination replaces all prior definitions of itself.
func step(fn *mir.Function, set DefSet, idx int, p mir.Instr) {
    for _, t := range consumedUses(p) {
        if fn.TypeOf(t).Linear {
            set.Kill(t)
        }
    }
    if def, ok := p.(mir.Definitions); ok {
        for _, d := range def.Definitions() {
            set.Kill(*d)
            set.Gen(*d, idx)
        }
    }
}

func entryState(fn *mir.Function) DefSet {
    s := make(DefSet, len(fn.Params))
    for i, p := range fn.Params {
        s.Gen(p, EntrySite(i))
    }
    return s
}

// Analyze computes reaching definitions for fn. It is pure and
// deterministic; the input is never modified. Analysis doubles as the
// validation boundary: every operand must be reached by at least one
// definition, a read of a consumed or undefined binding fails with
// IRValidationError.
func Analyze(fn *mir.Function) (*ReachingDefs, error) {
    cfg, err := BuildCFG(fn)
    if err != nil {
        return nil, err
    }

    /* reaching definitions: transfer = gen/kill walk, join = union */
    engine := Forward {
        Join: func(dst DefSet, src DefSet) {
            dst.Union(src)
        },
        Transfer: func(bb *BasicBlock, in DefSet) DefSet {
            s := in.Clone()
            for i, p := range bb.Ins {
                step(fn, s, bb.Off + i, p)
            }
            return s
        },
    }

    /* iterate to the fixed point */
    entry := entryState(fn)
    outs, err := engine.Run(cfg, entry)
    if err != nil {
        return nil, err
    }

    /* expand the block solution to per-instruction sets */
    rd := &ReachingDefs {
        Fn  : fn,
        In  : make([]DefSet, len(fn.Code)),
        Out : make([]DefSet, len(fn.Code)),
        cfg : cfg,
    }

    for _, bb := range cfg.Blocks {
        cur := make(DefSet)
        if bb.Id == cfg.Root {
            cur = entry.Clone()
        }
        for _, p := range bb.Pred {
            if outs[p] != nil {
                cur.Union(outs[p])
            }
        }
        for i, p := range bb.Ins {
            idx := bb.Off + i
            rd.In[idx] = cur.Clone()
            step(fn, cur, idx, p)
            rd.Out[idx] = cur.Clone()
        }
    }

    /* validation boundary: every use must be reached */
    if err := rd.validate(); err != nil {
        return nil, err
    }

    /* optional offline dump of the solution */
    rd.Dump()
    return rd, nil
}

func (self *ReachingDefs) validate() error {
    for idx, p := range self.Fn.Code {
        use, ok := p.(mir.Usages)
        if !ok {
            continue
        }
        for _, u := range use.Usages() {
            if len(self.In[idx][*u]) == 0 {
                return mir.IRValidationError {
                    Func   : self.Fn.Name,
                    Index  : idx,
                    Temp   : int(*u),
                    Reason : "use with no reaching definition",
                }
            }
        }
    }
    return nil
}

// CFG returns the control-flow graph the analysis ran on.
func (self *ReachingDefs) CFG() *CFG {
    return self.cfg
}

// Defs returns the definition sites of t reaching instruction idx.
func (self *ReachingDefs) Defs(t mir.Temp, idx int) []int {
    return self.In[idx].Defs(t)
}

// Unambiguous reports whether exactly one definition of t reaches idx,
// and if so which one.
func (self *ReachingDefs) Unambiguous(t mir.Temp, idx int) (int, bool) {
    if s := self.In[idx][t]; len(s) != 1 {
        return 0, false
    } else {
        for d := range s {
            return d, true
        }
        panic("unreachable")
    }
}
