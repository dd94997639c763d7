package board

import (
	"fmt"
	"strconv"
	"strings"
)

// StartFEN is the standard initial position.
const StartFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

// ParseFEN builds a position from Forsyth-Edwards notation. The clocks are optional.
func ParseFEN(fen string) (*Position, error) {
	fields := strings.Fields(fen)
	if len(fields) < 4 {
		return nil, fmt.Errorf("invalid FEN %q: need at least 4 fields, got %d", fen, len(fields))
	}

	pos := &Position{EnPassant: NoSquare, FullMoveNumber: 1}
	pos.KingSquare = [2]Square{NoSquare, NoSquare}

	ranks := strings.Split(fields[0], "/")
	if len(ranks) != 8 {
		return nil, fmt.Errorf("invalid FEN placement %q: need 8 ranks", fields[0])
	}
	for i, row := range ranks {
		rank, file := 7-i, 0
		for j := 0; j < len(row); j++ {
			c := row[j]
			if c >= '1' && c <= '8' {
				file += int(c - '0')
				continue
			}
			pc := PieceFromChar(c)
			if pc == NoPiece || file > 7 {
				return nil, fmt.Errorf("invalid FEN placement %q at rank %d", row, rank+1)
			}
			pos.setPiece(pc, NewSquare(file, rank))
			file++
		}
		if file != 8 {
			return nil, fmt.Errorf("invalid FEN placement %q: rank %d has %d files", row, rank+1, file)
		}
	}

	switch fields[1] {
	case "w":
		pos.SideToMove = White
	case "b":
		pos.SideToMove = Black
	default:
		return nil, fmt.Errorf("invalid side to move %q", fields[1])
	}

	if fields[2] != "-" {
		for _, c := range fields[2] {
			i := strings.IndexRune("KQkq", c)
			if i < 0 {
				return nil, fmt.Errorf("invalid castling rights %q", fields[2])
			}
			pos.CastlingRights |= 1 << i
		}
	}
	// Rights without the king and rook on their home squares are dropped.
	homes := [4][2]Square{{E1, H1}, {E1, A1}, {E8, H8}, {E8, A8}}
	for i, h := range homes {
		c := Color(i / 2)
		if !pos.Pieces[c][King].Has(h[0]) || !pos.Pieces[c][Rook].Has(h[1]) {
			pos.CastlingRights &^= 1 << i
		}
	}

	if fields[3] != "-" {
		sq, err := ParseSquare(fields[3])
		if err != nil {
			return nil, fmt.Errorf("invalid en passant square: %w", err)
		}
		pos.EnPassant = sq
	}

	// An en passant square nothing could have just passed over is dropped.
	if pos.EnPassant != NoSquare && !pos.validEnPassant() {
		pos.EnPassant = NoSquare
	}

	if len(fields) > 4 {
		n, err := strconv.Atoi(fields[4])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid half-move clock %q", fields[4])
		}
		pos.HalfMoveClock = n
	}
	if len(fields) > 5 {
		n, err := strconv.Atoi(fields[5])
		if err != nil || n < 1 {
			return nil, fmt.Errorf("invalid full-move number %q", fields[5])
		}
		pos.FullMoveNumber = n
	}

	if err := pos.Validate(); err != nil {
		return nil, fmt.Errorf("invalid FEN %q: %w", fen, err)
	}
	pos.updateCheckers()
	pos.Hash = pos.ComputeHash()
	pos.PawnKey = pos.ComputePawnKey()
	return pos, nil
}

// validEnPassant reports whether the en passant square lies behind an enemy
// pawn that could have made a double push, with both passed squares empty.
func (p *Position) validEnPassant() bool {
	ep := p.EnPassant
	them := p.SideToMove.Other()
	pawn, origin := ep-8, ep+8
	if p.SideToMove == White {
		if ep.Rank() != 5 {
			return false
		}
	} else {
		if ep.Rank() != 2 {
			return false
		}
		pawn, origin = ep+8, ep-8
	}
	return p.Pieces[them][Pawn].Has(pawn) && p.IsEmpty(ep) && p.IsEmpty(origin)
}

// ToFEN renders the position in Forsyth-Edwards notation.
func (p *Position) ToFEN() string {
	var sb strings.Builder
	for rank := 7; rank >= 0; rank-- {
		empty := 0
		for file := 0; file < 8; file++ {
			pc := p.PieceAt(NewSquare(file, rank))
			if pc == NoPiece {
				empty++
				continue
			}
			if empty > 0 {
				sb.WriteString(strconv.Itoa(empty))
				empty = 0
			}
			sb.WriteString(pc.String())
		}
		if empty > 0 {
			sb.WriteString(strconv.Itoa(empty))
		}
		if rank > 0 {
			sb.WriteByte('/')
		}
	}
	side := "w"
	if p.SideToMove == Black {
		side = "b"
	}
	fmt.Fprintf(&sb, " %s %s %s %d %d", side, p.CastlingRights, p.EnPassant, p.HalfMoveClock, p.FullMoveNumber)
	return sb.String()
}
