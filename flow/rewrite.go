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

// Rewrite produces an optimized copy of fn using its reaching-definition
// results. The input function is never modified. Rules, in order:
//
//   1. every parameter binding is renamed through a single entry move
//      into a fresh temporary, so the original binding is consumed at
//      most once no matter how often later code re-reads it;
//   2. an unambiguous use of a copied temporary is forwarded to the
//      copy source, and copies that no longer reach any use are removed;
//   3. a copy whose linear source has no reachable use after it on any
//      path is promoted to a move;
//   4. ambiguous uses (joins, loop back-edges) are left untouched.
//
// Named locals are forwarding barriers: a use may be folded down to a
// named binding but never through it. On validation failure the caller
// keeps the original function; no partial rewrite is ever observable.
func Rewrite(fn *mir.Function, rd *ReachingDefs) (*mir.Function, error) {
    out := fn.Clone()

    /* establish the parameter bindings; the indices shift when moves
     * are inserted, so the analysis is redone on the shifted body */
    if insertPrologue(out) {
        nrd, err := Analyze(out)
        if err != nil {
            return fn, err
        }
        rd = nrd
    } else {
        cfg, err := BuildCFG(out)
        if err != nil {
            return fn, err
        }
        rd = &ReachingDefs { Fn: out, In: rd.In, Out: rd.Out, cfg: cfg }
    }

    /* forward copied values and drop the dead copies */
    rw := &_Rewriter {
        fn  : out,
        rd  : rd,
        del : make(map[int]bool),
        plg : prologueLen(out),
    }
    rw.propagate()
    rw.eliminate()
    rw.compact()

    /* the surviving copies are promotion candidates; promotion changes
     * consumption, so re-analyze before and verify after */
    nrd, err := Analyze(out)
    if err != nil {
        return fn, err
    }
    promote(out, nrd)

    /* verification boundary: every use still reached, no linear binding
     * moved twice on any path */
    nrd, err = Analyze(out)
    if err != nil {
        return fn, err
    }
    if err = CheckLinearity(nrd); err != nil {
        return fn, err
    }
    return out, nil
}

type _Rewriter struct {
    fn  *mir.Function
    rd  *ReachingDefs
    del map[int]bool
    plg int
}

// prologueLen returns the length of the leading run of parameter moves.
func prologueLen(fn *mir.Function) (n int) {
    for _, p := range fn.Code {
        if m, ok := p.(*mir.IrMove); ok && fn.IsParam(m.S) {
            n++
        } else {
            break
        }
    }
    return
}

// insertPrologue renames every eligible parameter through an entry
// move into a fresh temporary and redirects all body uses to the fresh
// binding. Parameters that are reassigned in the body, or that were
// renamed by a previous run of the pass, are left alone; recognizing
// the existing prologue is what makes the pass idempotent.
func insertPrologue(fn *mir.Function) bool {
    plg := prologueLen(fn)
    cc := mir.NewContext(fn)

    /* collect the per-parameter def/use picture */
    var renames []mir.IrMove
    subst := make(map[mir.Temp]mir.Temp)

    for _, p := range fn.Params {
        defs, uses := sitesOf(fn, p)

        /* reassigned parameters keep their original binding */
        if len(defs) != 0 {
            continue
        }

        /* a single use that already is an entry move */
        if len(uses) == 1 && uses[0] < plg {
            if m, ok := fn.Code[uses[0]].(*mir.IrMove); ok && m.S == p {
                continue
            }
        }

        /* fresh binding for the renamed parameter */
        f := cc.NewTemp(fn.TypeOf(p), "")
        subst[p] = f
        renames = append(renames, mir.IrMove { D: f, S: p })
    }

    /* nothing to do for a settled prologue */
    if len(renames) == 0 {
        return false
    }

    /* redirect every body use of a renamed parameter */
    for _, p := range fn.Code {
        if use, ok := p.(mir.Usages); ok {
            for _, u := range use.Usages() {
                if f, ok := subst[*u]; ok {
                    *u = f
                }
            }
        }
    }

    /* splice the moves in front and shift the label marks */
    code := make([]mir.Instr, 0, len(fn.Code) + len(renames))
    for i := range renames {
        code = append(code, &renames[i])
    }
    fn.Code = append(code, fn.Code...)

    for name, idx := range fn.Labels {
        fn.Labels[name] = idx + len(renames)
    }
    return true
}

func sitesOf(fn *mir.Function, t mir.Temp) (defs []int, uses []int) {
    for i, p := range fn.Code {
        if use, ok := p.(mir.Usages); ok {
            for _, u := range use.Usages() {
                if *u == t {
                    uses = append(uses, i)
                }
            }
        }
        if def, ok := p.(mir.Definitions); ok {
            for _, d := range def.Definitions() {
                if *d == t {
                    defs = append(defs, i)
                }
            }
        }
    }
    return
}

// reachedUses counts the operand occurrences of t that definition site
// d still reaches, against the current (possibly already forwarded)
// operand values.
func reachedUses(fn *mir.Function, rd *ReachingDefs, t mir.Temp, d int) (n int) {
    for j, p := range fn.Code {
        use, ok := p.(mir.Usages)
        if !ok {
            continue
        }
        for _, u := range use.Usages() {
            if *u == t {
                if _, ok := rd.In[j][t][d]; ok {
                    n++
                }
            }
        }
    }
    return
}

// propagate forwards every eligible operand to the source of its
// unique reaching copy, chasing copy chains until a barrier.
func (self *_Rewriter) propagate() {
    for idx, p := range self.fn.Code {
        use, ok := p.(mir.Usages)
        if !ok {
            continue
        }
        for _, u := range use.Usages() {
            for self.forward(u, idx) {
            }
        }
    }
}

// forward performs one forwarding step on the operand at *u read by
// instruction idx. It reports whether a step was taken.
func (self *_Rewriter) forward(u *mir.Temp, idx int) bool {
    t := *u

    /* named bindings are never forwarded through */
    if self.fn.NameOf(t) != "" {
        return false
    }

    /* the use must trace to exactly one definition */
    d, ok := self.rd.Unambiguous(t, idx)
    if !ok || d < 0 || self.del[d] {
        return false
    }

    /* only copies and moves forward values */
    switch v := self.fn.Code[d].(type) {
        case *mir.IrCopy: {
            /* a consuming use folded onto a linear source would consume
             * the source binding early and break its later readers; the
             * copy is what shields them, keep reading it */
            if self.fn.TypeOf(v.S).Linear && consumes(self.fn.Code[idx], t) {
                return false
            }

            /* the source binding must be untouched between the copy and
             * the use: same definitions flowing out of d and into idx */
            if len(self.rd.Out[d][v.S]) == 0 {
                return false
            }
            if !sameDefs(self.rd.Out[d][v.S], self.rd.In[idx][v.S]) {
                return false
            }
            *u = v.S
            return true
        }
        case *mir.IrMove: {
            /* entry renames are kept as the sole parameter consumption */
            if d < self.plg {
                return false
            }

            /* forwarding a move resurrects the source binding, which is
             * only sound if the move itself goes away: the use must be
             * the only one reached and the stretch in between must not
             * touch either temporary */
            if reachedUses(self.fn, self.rd, t, d) != 1 {
                return false
            }
            if !self.clearBetween(d, idx, v.S, t) {
                return false
            }
            *u = v.S
            self.del[d] = true
            return true
        }
        default: {
            return false
        }
    }
}

// clearBetween checks that instructions strictly between d and idx in
// the same basic block neither redefine nor consume a or b.
func (self *_Rewriter) clearBetween(d int, idx int, a mir.Temp, b mir.Temp) bool {
    bb := self.rd.cfg.BlockOf(d)
    if idx <= d || idx >= bb.End() {
        return false
    }
    for j := d + 1; j < idx; j++ {
        p := self.fn.Code[j]
        if def, ok := p.(mir.Definitions); ok {
            for _, r := range def.Definitions() {
                if *r == a || *r == b {
                    return false
                }
            }
        }
        for _, r := range consumedUses(p) {
            if r == a || r == b {
                return false
            }
        }
    }
    return true
}

// eliminate drops every copy that no longer reaches any use.
func (self *_Rewriter) eliminate() {
    for idx, p := range self.fn.Code {
        if c, ok := p.(*mir.IrCopy); ok && !self.del[idx] {
            if reachedUses(self.fn, self.rd, c.D, idx) == 0 {
                self.del[idx] = true
            }
        }
    }
}

// compact materializes the pending deletions and remaps label marks to
// the next surviving instruction.
func (self *_Rewriter) compact() {
    if len(self.del) == 0 {
        return
    }

    /* survivor count below each index */
    remap := make([]int, len(self.fn.Code) + 1)
    n := 0

    for i := range self.fn.Code {
        remap[i] = n
        if !self.del[i] {
            n++
        }
    }
    remap[len(self.fn.Code)] = n

    /* rebuild the body */
    code := make([]mir.Instr, 0, n)
    for i, p := range self.fn.Code {
        if !self.del[i] {
            code = append(code, p)
        }
    }
    self.fn.Code = code

    /* shift the label marks */
    for name, idx := range self.fn.Labels {
        self.fn.Labels[name] = remap[idx]
    }
}

// promote rewrites each surviving copy of a linear source into a move
// when no use of the same source binding can execute after it. The
// check is performed against the analysis, never assumed.
func promote(fn *mir.Function, rd *ReachingDefs) {
    for idx, p := range fn.Code {
        c, ok := p.(*mir.IrCopy)
        if !ok || !fn.TypeOf(c.S).Linear {
            continue
        }
        if len(rd.In[idx][c.S]) == 0 {
            continue
        }
        if !usedAfter(fn, rd, c.S, idx) {
            fn.Code[idx] = &mir.IrMove { D: c.D, S: c.S }
        }
    }
}

// usedAfter reports whether any use of t reached by the binding read at
// idx can execute after idx on some path. The read at idx itself counts
// when its block lies on a cycle: the binding survives the copy and is
// read again on the next trip.
func usedAfter(fn *mir.Function, rd *ReachingDefs, t mir.Temp, idx int) bool {
    cfg := rd.cfg
    bi := cfg.BlockOf(idx)
    binding := rd.In[idx][t]

    for j, p := range fn.Code {
        use, ok := p.(mir.Usages)
        if !ok {
            continue
        }

        /* the use must read t through the same binding */
        touched := false
        for _, u := range use.Usages() {
            if *u == t {
                touched = true
                break
            }
        }
        if !touched {
            continue
        }
        if !intersects(rd.In[j][t], binding) {
            continue
        }

        /* order test: straight-line within the block, or a path through
         * the graph (including cycles back into the same block) */
        bj := cfg.BlockOf(j)
        if bi.Id == bj.Id {
            if j > idx || cfg.Reachable(bi.Id, bi.Id) {
                return true
            }
        } else if cfg.Reachable(bi.Id, bj.Id) {
            return true
        }
    }
    return false
}

// consumes reports whether p takes t by value.
func consumes(p mir.Instr, t mir.Temp) bool {
    for _, v := range consumedUses(p) {
        if v == t {
            return true
        }
    }
    return false
}

func intersects(a map[int]struct{}, b map[int]struct{}) bool {
    for i := range a {
        if _, ok := b[i]; ok {
            return true
        }
    }
    return false
}

func sameDefs(a map[int]struct{}, b map[int]struct{}) bool {
    if len(a) != len(b) {
        return false
    }
    for i := range a {
        if _, ok := b[i]; !ok {
            return false
        }
    }
    return true
}
