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

import (
    `fmt`
    `strings`
)

// Temp is a temporary index, unique and dense within a function.
// Parameters always occupy the lowest indices.
type Temp uint32

func (self Temp) String() string {
    return fmt.Sprintf("%%%d", uint32(self))
}

type Kind uint8

const (
    KindInt Kind = iota
    KindBool
    KindAddress
    KindRecord
)

// Type is the declared type of a temporary. Linear types carry move-once
// bindings: a moved binding may not be read again without redefinition.
type Type struct {
    Kind   Kind
    Name   string
    Linear bool
    Fields []Type
}

func Int() Type {
    return Type { Kind: KindInt }
}

func Bool() Type {
    return Type { Kind: KindBool }
}

func Address() Type {
    return Type { Kind: KindAddress }
}

func Record(name string, linear bool, fields ...Type) Type {
    return Type {
        Kind   : KindRecord,
        Name   : name,
        Linear : linear,
        Fields : fields,
    }
}

func (self Type) String() string {
    switch self.Kind {
        case KindInt     : return "int"
        case KindBool    : return "bool"
        case KindAddress : return "address"
        case KindRecord  : return self.Name
        default          : panic("invalid type kind")
    }
}

type BinOp uint8

const (
    OpAdd BinOp = iota
    OpSub
    OpMul
    OpDiv
    OpMod
    OpCmpEq
    OpCmpNe
    OpCmpLt
    OpCmpGe
)

var _BinOpNames = [...]string {
    OpAdd   : "add",
    OpSub   : "sub",
    OpMul   : "mul",
    OpDiv   : "div",
    OpMod   : "mod",
    OpCmpEq : "eq",
    OpCmpNe : "ne",
    OpCmpLt : "lt",
    OpCmpGe : "ge",
}

func (self BinOp) String() string {
    if int(self) < len(_BinOpNames) {
        return _BinOpNames[self]
    } else {
        panic("invalid binary op")
    }
}

// Instr is a single IR operation. The variant set is closed, every
// consumer matches it exhaustively.
type Instr interface {
    fmt.Stringer
    irinstr()
}

func (*IrConstInt)   irinstr() {}
func (*IrConstBool)  irinstr() {}
func (*IrCopy)       irinstr() {}
func (*IrMove)       irinstr() {}
func (*IrBinaryExpr) irinstr() {}
func (*IrPack)       irinstr() {}
func (*IrUnpack)     irinstr() {}
func (*IrCall)       irinstr() {}
func (*IrBranch)     irinstr() {}
func (*IrCondBranch) irinstr() {}
func (*IrReturn)     irinstr() {}
func (*IrAbort)      irinstr() {}

// Usages is implemented by instructions that read temporaries. The
// returned pointers alias the operand slots so rewrites mutate in place.
type Usages interface {
    Instr
    Usages() []*Temp
}

// Definitions is implemented by instructions that define temporaries.
type Definitions interface {
    Instr
    Definitions() []*Temp
}

// Terminator is implemented by control-transfer instructions.
type Terminator interface {
    Instr
    irterminator()
}

func (*IrBranch)     irterminator() {}
func (*IrCondBranch) irterminator() {}
func (*IrReturn)     irterminator() {}
func (*IrAbort)      irterminator() {}

type IrConstInt struct {
    R Temp
    V int64
}

func (self *IrConstInt) String() string {
    return fmt.Sprintf("%s = const %d", self.R, self.V)
}

func (self *IrConstInt) Definitions() []*Temp {
    return []*Temp { &self.R }
}

type IrConstBool struct {
    R Temp
    V bool
}

func (self *IrConstBool) String() string {
    return fmt.Sprintf("%s = const %v", self.R, self.V)
}

func (self *IrConstBool) Definitions() []*Temp {
    return []*Temp { &self.R }
}

// IrCopy duplicates the value of S into D without consuming S.
type IrCopy struct {
    D Temp
    S Temp
}

func (self *IrCopy) String() string {
    return fmt.Sprintf("%s = copy %s", self.D, self.S)
}

func (self *IrCopy) Usages() []*Temp {
    return []*Temp { &self.S }
}

func (self *IrCopy) Definitions() []*Temp {
    return []*Temp { &self.D }
}

// IrMove transfers the binding of S into D. For linear S the source
// binding is consumed and may not be read again until redefined.
type IrMove struct {
    D Temp
    S Temp
}

func (self *IrMove) String() string {
    return fmt.Sprintf("%s = move %s", self.D, self.S)
}

func (self *IrMove) Usages() []*Temp {
    return []*Temp { &self.S }
}

func (self *IrMove) Definitions() []*Temp {
    return []*Temp { &self.D }
}

type IrBinaryExpr struct {
    R  Temp
    X  Temp
    Y  Temp
    Op BinOp
}

func (self *IrBinaryExpr) String() string {
    return fmt.Sprintf("%s = %s %s, %s", self.R, self.Op, self.X, self.Y)
}

func (self *IrBinaryExpr) Usages() []*Temp {
    return []*Temp { &self.X, &self.Y }
}

func (self *IrBinaryExpr) Definitions() []*Temp {
    return []*Temp { &self.R }
}

// IrPack assembles a record value from its field operands. Operands are
// taken by value, linear operands are consumed.
type IrPack struct {
    R  Temp
    T  Type
    In []Temp
}

func (self *IrPack) String() string {
    return fmt.Sprintf("%s = pack %s(%s)", self.R, self.T.Name, tmpjoin(self.In))
}

func (self *IrPack) Usages() []*Temp {
    return tmprefs(self.In)
}

func (self *IrPack) Definitions() []*Temp {
    return []*Temp { &self.R }
}

// IrUnpack disassembles the record in S into one destination per field,
// consuming S.
type IrUnpack struct {
    S   Temp
    Out []Temp
}

func (self *IrUnpack) String() string {
    return fmt.Sprintf("%s = unpack %s", tmpjoin(self.Out), self.S)
}

func (self *IrUnpack) Usages() []*Temp {
    return []*Temp { &self.S }
}

func (self *IrUnpack) Definitions() []*Temp {
    return tmprefs(self.Out)
}

// IrCall invokes an external function. Arguments are taken by value,
// linear arguments are consumed.
type IrCall struct {
    Fn  string
    In  []Temp
    Out []Temp
}

func (self *IrCall) String() string {
    if len(self.Out) == 0 {
        return fmt.Sprintf("call %s(%s)", self.Fn, tmpjoin(self.In))
    } else {
        return fmt.Sprintf("%s = call %s(%s)", tmpjoin(self.Out), self.Fn, tmpjoin(self.In))
    }
}

func (self *IrCall) Usages() []*Temp {
    return tmprefs(self.In)
}

func (self *IrCall) Definitions() []*Temp {
    return tmprefs(self.Out)
}

type IrBranch struct {
    To string
}

func (self *IrBranch) String() string {
    return "goto " + self.To
}

type IrCondBranch struct {
    V Temp
    T string
    F string
}

func (self *IrCondBranch) String() string {
    return fmt.Sprintf("if %s goto %s else %s", self.V, self.T, self.F)
}

func (self *IrCondBranch) Usages() []*Temp {
    return []*Temp { &self.V }
}

type IrReturn struct {
    Rs []Temp
}

func (self *IrReturn) String() string {
    if len(self.Rs) == 0 {
        return "ret"
    } else {
        return "ret " + tmpjoin(self.Rs)
    }
}

func (self *IrReturn) Usages() []*Temp {
    return tmprefs(self.Rs)
}

type IrAbort struct {
    V Temp
}

func (self *IrAbort) String() string {
    return fmt.Sprintf("abort %s", self.V)
}

func (self *IrAbort) Usages() []*Temp {
    return []*Temp { &self.V }
}

func tmprefs(v []Temp) (r []*Temp) {
    r = make([]*Temp, len(v))
    for i := range v { r[i] = &v[i] }
    return
}

func tmpjoin(v []Temp) string {
    nb := len(v)
    ret := make([]string, nb)
    for i, t := range v { ret[i] = t.String() }
    return strings.Join(ret, ", ")
}
