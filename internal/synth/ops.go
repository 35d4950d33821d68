// ops.go - Per-instruction dispatch tokens

/*
(c) 2024 - 2026 Zayn Otley
https://github.com/IntuitionAmiga/IntuitionEngine
License: GPLv3 or later
*/

package synth

// Op* are the dispatch tokens for the concrete 68k instruction set this
// module's translator emits and its interpreter executes (spec.md
// §4.E's worked instruction set). Declared here, rather than in
// package translate, so the translator (which emits them) and the
// interpreter (which registers handlers for them) agree on numbering
// without either importing the other.
const (
	OpMoveB Token = FirstOpcodeToken + iota
	OpMoveW
	OpMoveL
	OpMoveaW
	OpMoveaL
	OpMoveq
	OpORB
	OpORW
	OpORL
	OpOREaDnB
	OpOREaDnW
	OpOREaDnL
	OpANDB
	OpANDW
	OpANDL
	OpANDEaDnB
	OpANDEaDnW
	OpANDEaDnL
	OpEORB
	OpEORW
	OpEORL
	OpAddB
	OpAddW
	OpAddL
	OpAddaW
	OpAddaL
	OpAddEaDnB
	OpAddEaDnW
	OpAddEaDnL
	OpSubB
	OpSubW
	OpSubL
	OpSubaW
	OpSubaL
	OpSubEaDnB
	OpSubEaDnW
	OpSubEaDnL
	OpAddiB
	OpAddiW
	OpAddiL
	OpSubiB
	OpSubiW
	OpSubiL
	OpAndiB
	OpAndiW
	OpAndiL
	OpOriB
	OpOriW
	OpOriL
	OpEoriB
	OpEoriW
	OpEoriL
	OpCmpiB
	OpCmpiW
	OpCmpiL
	OpAddqB
	OpAddqW
	OpAddqL
	OpSubqB
	OpSubqW
	OpSubqL
	OpCmpB
	OpCmpW
	OpCmpL
	OpCmpaW
	OpCmpaL
	OpClrB
	OpClrW
	OpClrL
	OpTstB
	OpTstW
	OpTstL
	OpNotB
	OpNotW
	OpNotL
	OpLea
	OpBra
	OpBcc
	OpJsr
	OpJmp
	OpRts
	OpNop
	OpTrap
	OpRte
)
