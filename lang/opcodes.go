// Copyright (C) 2022 Sneller, Inc.
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

package lang

// Op is a single bytecode instruction's opcode. Every instruction is
// one byte of opcode followed by a fixed number of little-endian
// operand bytes, consumed by package rtvm's dispatch loop.
type Op byte

const (
	OpNop Op = iota
	OpLoadConst  // u16 const index -> push Constants[idx]
	OpLoadEnv    // u32 symbol id -> push Lookup(sym) or raise NOT_FOUND
	OpStoreEnv   // u32 symbol id -> Assign(sym, pop())
	OpLoadLocal  // u16 local slot -> push Frame().Get(slot)
	OpStoreLocal // u16 local slot -> Frame().Set(slot, pop())
	OpPop        // discard top of stack
	OpDup        // duplicate top of stack
	OpJmp        // i32 relative offset
	OpJmpFalse   // i32 relative offset; pops a bool-ish condition
	OpCall1      // call the value below 1 arg with that 1 arg
	OpCall2      // call the value below 2 args with those 2 args
	OpCallN      // u8 argc -> call a VARY builtin/lambda with argc args
	OpMakeList   // u16 n -> pop n values, push a List
	OpMakeVector // u16 n, u8 elemKind -> pop n atoms, push a Vector
	OpMakeDict   // u16 n -> pop 2n values (k0 v0 k1 v1 ...), push a Dict
	OpRet        // return top of stack from the current lambda
	OpTryPush    // i32 relative offset to the catch target
	OpTryPop     // pop the current try-handler frame
	OpRaise      // pop an error value and propagate it as a raise
	OpHandle     // pop handler and caught error; call handler(error) if callable, else keep handler
)

// opLen returns the instruction length (1 opcode byte + operand
// bytes) for the fixed-width instructions the compiler emits.
func opLen(op Op) int {
	switch op {
	case OpNop, OpPop, OpDup, OpCall1, OpCall2, OpRet, OpTryPop, OpRaise, OpHandle:
		return 1
	case OpCallN:
		return 2
	case OpLoadConst, OpLoadLocal, OpStoreLocal:
		return 3
	case OpMakeList, OpMakeDict:
		return 3
	case OpMakeVector:
		return 4
	case OpLoadEnv, OpStoreEnv:
		return 5
	case OpJmp, OpJmpFalse, OpTryPush:
		return 5
	}
	return 1
}
