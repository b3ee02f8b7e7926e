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
    `testing`

    `github.com/cloudwego/movopt/mir`
    `github.com/stretchr/testify/require`
)

func TestDefSet_Ops(t *testing.T) {
    s := make(DefSet)
    s.Gen(1, 5)
    s.Gen(1, 3)
    s.Gen(2, 0)
    require.Equal(t, []int { 3, 5 }, s.Defs(1))
    require.Equal(t, []int { 0 },    s.Defs(2))
    require.Nil(t, s.Defs(7))

    /* clones do not share storage */
    cp := s.Clone()
    cp.Gen(1, 9)
    cp.Kill(2)
    require.Equal(t, []int { 3, 5 }, s.Defs(1))
    require.Equal(t, []int { 0 },    s.Defs(2))

    /* union is idempotent, equality is structural */
    u := s.Clone()
    u.Union(s)
    require.True(t, u.Equals(s))
    u.Gen(3, 1)
    require.False(t, u.Equals(s))
    require.False(t, s.Equals(u))

    s.Kill(1)
    require.Nil(t, s.Defs(1))
}

// selfLoop is a minimal single-block cycle: one goto targeting itself.
func selfLoop() *CFG {
    b := mir.NewBuilder("spin")
    b.Label("l")
    b.JMP("l")
    cfg, err := BuildCFG(b.Build())
    if err != nil {
        panic(err)
    }
    return cfg
}

func TestForward_Fixpoint(t *testing.T) {
    cfg := selfLoop()

    /* a monotone transfer (gen one site, kill nothing) settles after
     * one extra round through the back-edge */
    engine := Forward {
        Join: func(dst DefSet, src DefSet) {
            dst.Union(src)
        },
        Transfer: func(bb *BasicBlock, in DefSet) DefSet {
            s := in.Clone()
            s.Gen(0, bb.Off)
            return s
        },
    }

    out, err := engine.Run(cfg, make(DefSet))
    require.NoError(t, err)
    require.Len(t, out, 1)
    require.Equal(t, []int { 0 }, out[0].Defs(0))
}

func TestForward_DivergenceBound(t *testing.T) {
    cfg := selfLoop()

    /* a deliberately broken transfer that toggles its output can never
     * converge; the defensive bound must cut the iteration off */
    engine := Forward {
        Join: func(dst DefSet, src DefSet) {
            dst.Union(src)
        },
        Transfer: func(bb *BasicBlock, in DefSet) DefSet {
            s := make(DefSet)
            if len(in[0]) == 0 {
                s.Gen(0, 0)
            }
            return s
        },
    }

    _, err := engine.Run(cfg, make(DefSet))
    require.Error(t, err)

    var ie InternalAnalysisError
    require.ErrorAs(t, err, &ie)
    require.Equal(t, "spin", ie.Func)
    require.Contains(t, err.Error(), "did not converge")
}
