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
    `testing`

    `github.com/brianvoe/gofakeit/v6`
    `github.com/cloudwego/movopt/mir`
    `github.com/stretchr/testify/require`
)

// bruteReachingDefs computes per-instruction input states by explicit
// path enumeration, revisiting each block at most 3 times per path. On
// a gen/kill lattice every state is already stable on the second trip
// around a cycle, so the bounded enumeration matches the fixed point.
func bruteReachingDefs(fn *mir.Function, cfg *CFG) []DefSet {
    ins := make([]DefSet, len(fn.Code))
    for i := range ins {
        ins[i] = make(DefSet)
    }

    visits := make([]int, len(cfg.Blocks))
    var walk func(id int, s DefSet)

    walk = func(id int, s DefSet) {
        if visits[id] >= 3 {
            return
        }
        visits[id]++
        cur := s.Clone()
        bb := cfg.Blocks[id]
        for i, p := range bb.Ins {
            ins[bb.Off + i].Union(cur)
            step(fn, cur, bb.Off + i, p)
        }
        for _, n := range bb.Succ {
            walk(n, cur)
        }
        visits[id]--
    }

    walk(cfg.Root, entryState(fn))
    return ins
}

func TestReachingDefs_LoopFixture(t *testing.T) {
    fn := makeLoopFunc()
    rd, err := Analyze(fn)
    require.NoError(t, err)

    /* temporaries of the fixture: %0 = c, %3 = t2, %4 = t3, %5 = t4 */

    /* both arm definitions of t3 meet at the join block */
    require.Equal(t, []int { 4, 6 }, rd.Defs(4, 8))
    _, one := rd.Unambiguous(4, 8)
    require.False(t, one)

    /* t2 reaches its own redefinition through the back-edge */
    require.Equal(t, []int { 2 }, rd.Defs(3, 2))

    /* the parameter keeps its entry binding everywhere */
    for idx := range fn.Code {
        require.Equal(t, []int { EntrySite(0) }, rd.Defs(0, idx))
    }

    /* straight-line definitions are unambiguous at their uses */
    d, one := rd.Unambiguous(5, 10)
    require.True(t, one)
    require.Equal(t, 8, d)

    /* the fixed point must agree with explicit path enumeration */
    ins := bruteReachingDefs(fn, rd.CFG())
    for idx := range fn.Code {
        require.Truef(t, rd.In[idx].Equals(ins[idx]), "In[%d] mismatch: got %v, enumeration %v", idx, rd.In[idx], ins[idx])
    }
}

func TestReachingDefs_MoveConsumes(t *testing.T) {
    b := mir.NewBuilder("consume")
    p := b.Param(mir.Record("Coin", true, mir.Int()), "p")
    x := b.Temp(mir.Record("Coin", true, mir.Int()))
    b.MOVE(p, x)
    b.RET(x)
    fn := b.Build()

    rd, err := Analyze(fn)
    require.NoError(t, err)

    /* the entry binding flows into the move and dies there */
    require.Equal(t, []int { EntrySite(0) }, rd.Defs(p, 0))
    require.Empty(t, rd.Out[0].Defs(p))
    require.Equal(t, []int { 0 }, rd.Defs(x, 1))
}

func TestReachingDefs_CopyPreserves(t *testing.T) {
    b := mir.NewBuilder("preserve")
    p := b.Param(mir.Record("Coin", true, mir.Int()), "p")
    x := b.Temp(mir.Record("Coin", true, mir.Int()))
    b.COPY(p, x)
    b.RET(p)
    fn := b.Build()

    rd, err := Analyze(fn)
    require.NoError(t, err)
    require.Equal(t, []int { EntrySite(0) }, rd.Out[0].Defs(p))
    require.Equal(t, []int { EntrySite(0) }, rd.Defs(p, 1))
}

func TestReachingDefs_UseAfterMove(t *testing.T) {
    b := mir.NewBuilder("stale")
    p := b.Param(mir.Record("Coin", true, mir.Int()), "p")
    x := b.Temp(mir.Record("Coin", true, mir.Int()))
    b.MOVE(p, x)
    b.RET(p)    // reads the binding the move just consumed

    _, err := Analyze(b.Build())
    require.Error(t, err)

    var ve mir.IRValidationError
    require.ErrorAs(t, err, &ve)
    require.Equal(t, 1, ve.Index)
    require.Equal(t, int(p), ve.Temp)
    require.Contains(t, ve.Reason, "no reaching definition")
}

func TestReachingDefs_UndefinedUse(t *testing.T) {
    b := mir.NewBuilder("undef")
    x := b.Temp(mir.Int())
    b.RET(x)

    _, err := Analyze(b.Build())
    var ve mir.IRValidationError
    require.ErrorAs(t, err, &ve)
    require.Equal(t, 0, ve.Index)
}

// makeRandomDAG assembles a random acyclic flow graph of k blocks. The
// shared temporary x is redefined by some blocks, so join points
// accumulate multi-site reaching sets; the chain edge i -> i+1 keeps
// every block reachable.
func makeRandomDAG(k int) *mir.Function {
    b := mir.NewBuilder("rand")
    c := b.Param(mir.Bool(), "c")
    x := b.Temp(mir.Int())

    b.INT(0, x)
    for i := 0; i < k; i++ {
        if gofakeit.Bool() {
            b.INT(int64(i), x)
        }
        switch {
            case i == k - 1: {
                b.RET(x)
            }
            case i + 2 <= k - 1 && gofakeit.Bool(): {
                /* conditional skip-ahead, fall back to the chain edge */
                b.BR(c, fmt.Sprintf("b%d", gofakeit.Number(i + 2, k - 1)), fmt.Sprintf("b%d", i + 1))
                b.Label(fmt.Sprintf("b%d", i + 1))
            }
            default: {
                b.JMP(fmt.Sprintf("b%d", i + 1))
                b.Label(fmt.Sprintf("b%d", i + 1))
            }
        }
    }
    return b.Build()
}

func TestReachingDefs_RandomGraphs(t *testing.T) {
    gofakeit.Seed(0x6d766f7074)
    for round := 0; round < 50; round++ {
        fn := makeRandomDAG(gofakeit.Number(2, 6))
        rd, err := Analyze(fn)
        require.NoErrorf(t, err, "round %d:\n%s", round, fn)

        /* the fixed point must agree with explicit path enumeration */
        ins := bruteReachingDefs(fn, rd.CFG())
        for idx := range fn.Code {
            require.Truef(t, rd.In[idx].Equals(ins[idx]), "round %d In[%d] mismatch:\n%s", round, idx, fn)
        }

        /* ambiguity answers must be consistent with the raw sets */
        for idx := range fn.Code {
            for tmp := range rd.In[idx] {
                d, one := rd.Unambiguous(tmp, idx)
                if ds := rd.Defs(tmp, idx); len(ds) == 1 {
                    require.True(t, one)
                    require.Equal(t, ds[0], d)
                } else {
                    require.False(t, one)
                }
            }
        }
    }
}
