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

// CheckLinearity verifies the move-once invariant: no linear binding is
// consumed twice without an intervening redefinition on every path
// between the two consumptions. It is a second instance of the forward
// engine, the state being the set of definition sites whose binding may
// already have been consumed along some path.
func CheckLinearity(rd *ReachingDefs) error {
    fn := rd.Fn
    cfg := rd.cfg

    /* accumulate a consumption into the state */
    consume := func(s DefSet, t mir.Temp, idx int) {
        for _, d := range rd.In[idx].Defs(t) {
            s.Gen(t, d)
        }
    }

    /* consumptions accumulate, a redefinition starts a fresh binding
     * and clears them; the usual gen/kill form, monotone as required */
    apply := func(s DefSet, idx int, p mir.Instr) {
        for _, t := range consumedUses(p) {
            if fn.TypeOf(t).Linear {
                consume(s, t, idx)
            }
        }
        if def, ok := p.(mir.Definitions); ok {
            for _, d := range def.Definitions() {
                s.Kill(*d)
            }
        }
    }

    engine := Forward {
        Join: func(dst DefSet, src DefSet) {
            dst.Union(src)
        },
        Transfer: func(bb *BasicBlock, in DefSet) DefSet {
            s := in.Clone()
            for i, p := range bb.Ins {
                apply(s, bb.Off + i, p)
            }
            return s
        },
    }

    /* iterate to the fixed point */
    outs, err := engine.Run(cfg, make(DefSet))
    if err != nil {
        return err
    }

    /* re-walk every block: a consumption whose reaching binding may
     * already be consumed is a double move */
    for _, bb := range cfg.Blocks {
        cur := make(DefSet)
        for _, p := range bb.Pred {
            if outs[p] != nil {
                cur.Union(outs[p])
            }
        }
        for i, p := range bb.Ins {
            idx := bb.Off + i
            for _, t := range consumedUses(p) {
                if !fn.TypeOf(t).Linear {
                    continue
                }
                for _, d := range rd.In[idx].Defs(t) {
                    if _, ok := cur[t][d]; ok {
                        return mir.IRValidationError {
                            Func   : fn.Name,
                            Index  : idx,
                            Temp   : int(t),
                            Reason : "linear binding may be moved twice",
                        }
                    }
                }
            }
            apply(cur, idx, p)
        }
    }
    return nil
}
