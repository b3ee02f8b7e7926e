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

// Builder assembles a linear function body. Branch targets are plain
// label names, binding them to undefined labels is not an error here:
// resolution happens when the control-flow graph is built, so a
// malformed program surfaces as a validation error rather than a panic
// in the front-end.
type Builder struct {
    fn *Function
    cc *Context
}

func NewBuilder(name string) *Builder {
    fn := &Function {
        Name   : name,
        Labels : make(map[string]int),
    }
    return &Builder {
        fn: fn,
        cc: NewContext(fn),
    }
}

func (self *Builder) add(p Instr) {
    self.fn.Code = append(self.fn.Code, p)
}

// Param declares the next parameter temporary. All parameters must be
// declared before any locals or instructions.
func (self *Builder) Param(tp Type, name string) Temp {
    if len(self.fn.Types) != len(self.fn.Params) {
        panic("parameters must be declared first")
    }
    t := self.cc.NewTemp(tp, name)
    self.fn.Params = append(self.fn.Params, t)
    return t
}

// Local declares a named local binding.
func (self *Builder) Local(tp Type, name string) Temp {
    return self.cc.NewTemp(tp, name)
}

// Temp declares a compiler-generated temporary.
func (self *Builder) Temp(tp Type) Temp {
    return self.cc.NewTemp(tp, "")
}

// Label binds a name to the next instruction index.
func (self *Builder) Label(name string) {
    if _, ok := self.fn.Labels[name]; ok {
        panic("label " + name + " has already been bound")
    }
    self.fn.Labels[name] = len(self.fn.Code)
}

func (self *Builder) INT(v int64, d Temp)            { self.add(&IrConstInt { R: d, V: v }) }
func (self *Builder) BOOL(v bool, d Temp)            { self.add(&IrConstBool { R: d, V: v }) }
func (self *Builder) COPY(s Temp, d Temp)            { self.add(&IrCopy { D: d, S: s }) }
func (self *Builder) MOVE(s Temp, d Temp)            { self.add(&IrMove { D: d, S: s }) }
func (self *Builder) BINOP(op BinOp, x Temp, y Temp, d Temp) { self.add(&IrBinaryExpr { R: d, X: x, Y: y, Op: op }) }
func (self *Builder) PACK(tp Type, d Temp, in ...Temp)       { self.add(&IrPack { R: d, T: tp, In: in }) }
func (self *Builder) UNPACK(s Temp, out ...Temp)     { self.add(&IrUnpack { S: s, Out: out }) }
func (self *Builder) JMP(to string)                  { self.add(&IrBranch { To: to }) }
func (self *Builder) BR(v Temp, t string, f string)  { self.add(&IrCondBranch { V: v, T: t, F: f }) }
func (self *Builder) RET(rs ...Temp)                 { self.add(&IrReturn { Rs: rs }) }
func (self *Builder) ABORT(v Temp)                   { self.add(&IrAbort { V: v }) }

// CALL emits an external call. Use CALLV for calls without results.
func (self *Builder) CALL(fn string, out []Temp, in ...Temp) {
    self.add(&IrCall { Fn: fn, In: in, Out: out })
}

func (self *Builder) CALLV(fn string, in ...Temp) {
    self.add(&IrCall { Fn: fn, In: in })
}

// Build hands out the assembled function. The builder must not be used
// afterwards.
func (self *Builder) Build() *Function {
    fn := self.fn
    self.fn = nil
    self.cc = nil
    return fn
}
