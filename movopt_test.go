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

package movopt

import (
    `fmt`
    `testing`

    `github.com/cloudwego/movopt/mir`
    `github.com/stretchr/testify/require`
)

func mkdiv(name string) *mir.Function {
    b := mir.NewBuilder(name)
    a := b.Param(mir.Int(), "a")
    p := b.Param(mir.Int(), "b")
    x := b.Local(mir.Int(), "x")
    t3 := b.Temp(mir.Int())
    t4 := b.Temp(mir.Int())
    t5 := b.Temp(mir.Int())

    b.BINOP(mir.OpAdd, a, p, t3)
    b.COPY(a, t4)
    b.BINOP(mir.OpDiv, t3, t4, t5)
    b.COPY(t5, x)
    b.RET(x)
    return b.Build()
}

// mkbad conditionally consumes its linear parameter twice, which the
// rewrite verification rejects.
func mkbad(name string) *mir.Function {
    b := mir.NewBuilder(name)
    c := b.Param(mir.Bool(), "c")
    p := b.Param(mir.Record("Coin", true, mir.Int()), "p")
    s := b.Temp(mir.Record("Coin", true, mir.Int()))
    u := b.Temp(mir.Record("Coin", true, mir.Int()))

    b.BR(c, "take", "end")
    b.Label("take")
    b.MOVE(p, s)
    b.CALLV("consume", s)
    b.Label("end")
    b.MOVE(p, u)
    b.CALLV("consume", u)
    b.RET()
    return b.Build()
}

func TestRunPass(t *testing.T) {
    fn := mkdiv("basic")
    out, err := RunPass(fn)
    require.NoError(t, err)

    /* the parameters are renamed and the divisor copy is folded away */
    require.NotEqual(t, fn.String(), out.String())
    require.Contains(t, out.String(), "move %a")
    require.Contains(t, out.String(), "move %b")
    require.NotContains(t, out.String(), "copy %a")

    /* a second run settles immediately */
    again, err := RunPass(out)
    require.NoError(t, err)
    require.Equal(t, out.String(), again.String())
}

func TestRunPass_MalformedInput(t *testing.T) {
    b := mir.NewBuilder("broken")
    b.JMP("nowhere")
    fn := b.Build()

    ret, err := RunPass(fn)
    require.Error(t, err)
    require.Same(t, fn, ret)

    var ve mir.IRValidationError
    require.ErrorAs(t, err, &ve)
    require.Equal(t, "broken", ve.Func)
}

func TestOptimize(t *testing.T) {
    p := &mir.Program { Name: "mod" }
    for i := 0; i < 16; i++ {
        p.Functions = append(p.Functions, mkdiv(fmt.Sprintf("f%02d", i)))
    }

    /* concurrent and sequential runs must agree function by function */
    par, err := Optimize(p, WithParallelism(4))
    require.NoError(t, err)
    seq, err := Optimize(p, WithSequential())
    require.NoError(t, err)

    require.Len(t, par.Functions, 16)
    for i := range p.Functions {
        require.Equal(t, seq.Functions[i].String(), par.Functions[i].String())
        require.NotEqual(t, p.Functions[i].String(), par.Functions[i].String())
    }
}

func TestOptimize_FailureIsolation(t *testing.T) {
    p := &mir.Program {
        Name      : "mod",
        Functions : []*mir.Function {
            mkbad("bad_b"),
            mkdiv("good"),
            mkbad("bad_a"),
        },
    }

    ret, err := Optimize(p)
    require.Error(t, err)

    /* failures are reported per function, in name order */
    var me ModuleError
    require.ErrorAs(t, err, &me)
    require.Len(t, me.Errs, 2)
    require.Equal(t, "bad_a", me.Errs[0].Func)
    require.Equal(t, "bad_b", me.Errs[1].Func)

    var ve mir.IRValidationError
    require.ErrorAs(t, me.Errs[0].Err, &ve)
    require.Contains(t, me.Errs[0].Error(), "bad_a")

    /* failed functions keep their original IR, siblings are rewritten */
    require.Same(t, p.Functions[0], ret.Functions[0])
    require.Same(t, p.Functions[2], ret.Functions[2])
    require.NotEqual(t, p.Functions[1].String(), ret.Functions[1].String())
}

func TestDefaultParallelism(t *testing.T) {
    require.Greater(t, defaultParallelism(), 0)
}
