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

package mir

// Function is a single compilation unit: a flat instruction list with
// label marks, a dense per-temporary type table and optional display
// names. Parameters occupy the first temporary indices.
type Function struct {
    Name   string
    Params []Temp
    Types  []Type
    Names  []string
    Code   []Instr
    Labels map[string]int
}

// Program is an ordered collection of functions sharing no state.
type Program struct {
    Name      string
    Functions []*Function
}

func (self *Function) NumTemps() int {
    return len(self.Types)
}

func (self *Function) TypeOf(t Temp) Type {
    return self.Types[t]
}

// NameOf returns the display name of t, or "" for compiler-generated
// temporaries.
func (self *Function) NameOf(t Temp) string {
    return self.Names[t]
}

func (self *Function) IsParam(t Temp) bool {
    return int(t) < len(self.Params)
}

// LabelsAt returns every label bound to instruction index i.
func (self *Function) LabelsAt(i int) (r []string) {
    for name, idx := range self.Labels {
        if idx == i {
            r = append(r, name)
        }
    }
    return
}

// Clone returns a deep copy of the function. Instructions are copied
// node by node so operand rewrites on the copy never alias the source.
func (self *Function) Clone() *Function {
    ret := &Function {
        Name   : self.Name,
        Params : append([]Temp(nil), self.Params...),
        Types  : append([]Type(nil), self.Types...),
        Names  : append([]string(nil), self.Names...),
        Code   : make([]Instr, len(self.Code)),
        Labels : make(map[string]int, len(self.Labels)),
    }

    /* copy the label table */
    for name, idx := range self.Labels {
        ret.Labels[name] = idx
    }

    /* copy every instruction */
    for i, v := range self.Code {
        ret.Code[i] = cloneInstr(v)
    }
    return ret
}

func cloneInstr(v Instr) Instr {
    switch p := v.(type) {
        case *IrConstInt   : r := *p; return &r
        case *IrConstBool  : r := *p; return &r
        case *IrCopy       : r := *p; return &r
        case *IrMove       : r := *p; return &r
        case *IrBinaryExpr : r := *p; return &r
        case *IrPack       : r := *p; r.In = append([]Temp(nil), p.In...); return &r
        case *IrUnpack     : r := *p; r.Out = append([]Temp(nil), p.Out...); return &r
        case *IrCall       : r := *p; r.In = append([]Temp(nil), p.In...); r.Out = append([]Temp(nil), p.Out...); return &r
        case *IrBranch     : r := *p; return &r
        case *IrCondBranch : r := *p; return &r
        case *IrReturn     : r := *p; r.Rs = append([]Temp(nil), p.Rs...); return &r
        case *IrAbort      : r := *p; return &r
        default            : panic("invalid instruction variant")
    }
}

// Context owns the fresh-temporary counter of a single function. It is
// threaded through the builder and the rewriter explicitly, there is no
// global numbering state.
type Context struct {
    fn *Function
}

func NewContext(fn *Function) *Context {
    return &Context { fn: fn }
}

// NewTemp allocates a fresh temporary of type tp. Numbering is dense
// and deterministic within the function.
func (self *Context) NewTemp(tp Type, name string) Temp {
    t := Temp(len(self.fn.Types))
    self.fn.Types = append(self.fn.Types, tp)
    self.fn.Names = append(self.fn.Names, name)
    return t
}
