// Package positionid encodes backgammon positions into compact keys and
// GNU Backgammon compatible position IDs.
//
// Positions are given in gnubg's "TanBoard" layout: two 25-slot arrays,
// one per player, each numbered from that player's own point of view
// (slot 0 is the player's 1-point, slot 24 is the bar). Slot [1] is the
// player on roll, slot [0] the opponent. Borne-off checkers are implied
// by the 15-checker total and are not encoded.
//
// Position IDs are 14-character base64 strings.
package positionid

import (
	"errors"
)

const (
	// PositionIDLength is the length of a position ID string
	PositionIDLength = 14
	// Slots is the number of slots per player (24 points + bar)
	Slots = 25
	// BarSlot is the index of the bar within a player's slots
	BarSlot = 24
	// MaxCheckers is the number of checkers each player owns
	MaxCheckers = 15
)

const base64Chars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

// ErrInvalidPositionID is returned when a position ID cannot be decoded
// or decodes to an impossible position.
var ErrInvalidPositionID = errors.New("invalid position ID")

// Board is a position in TanBoard layout: [player][slot].
type Board [2][Slots]uint8

// PositionKey packs a position into 4 bits per slot. It is comparable
// and used as a hash/map key.
type PositionKey struct {
	Data [7]uint32
}

// idKey is the 80-bit run-length key behind the textual position ID.
type idKey [10]uint8

// MakePositionKey packs a board into a PositionKey. Slot counts above 15
// cannot occur in a valid position.
func MakePositionKey(board Board) PositionKey {
	var key PositionKey
	for word := 0; word < 3; word++ {
		for nib := 0; nib < 8; nib++ {
			slot := word*8 + nib
			shift := uint(nib * 4)
			key.Data[word] |= uint32(board[1][slot]&0x0f) << shift
			key.Data[word+3] |= uint32(board[0][slot]&0x0f) << shift
		}
	}
	key.Data[6] = uint32(board[0][BarSlot]&0x0f) | uint32(board[1][BarSlot]&0x0f)<<4
	return key
}

// makeIDKey writes each slot as a run of 1-bits terminated by a 0-bit.
func makeIDKey(board Board) idKey {
	var key idKey
	bit := 0
	for player := 0; player < 2; player++ {
		for slot := 0; slot < Slots; slot++ {
			for n := 0; n < int(board[player][slot]); n++ {
				key[bit/8] |= 1 << uint(bit%8)
				bit++
			}
			bit++
		}
	}
	return key
}

// boardFromIDKey reverses makeIDKey. ok is false when the key holds more
// runs or bits than a board can carry.
func boardFromIDKey(key idKey) (board Board, ok bool) {
	player, slot := 0, 0
	for bit := 0; bit < len(key)*8; bit++ {
		if player >= 2 {
			break
		}
		if key[bit/8]>>uint(bit%8)&1 == 1 {
			if board[player][slot] == 0x0f {
				return board, false
			}
			board[player][slot]++
			continue
		}
		slot++
		if slot == Slots {
			player++
			slot = 0
		}
	}
	return board, true
}

// PositionID returns the 14-character position ID of a board.
func PositionID(board Board) string {
	key := makeIDKey(board)
	out := make([]byte, PositionIDLength)
	src := key[:]
	for group := 0; group < 3; group++ {
		out[group*4] = base64Chars[src[0]>>2]
		out[group*4+1] = base64Chars[(src[0]&0x03)<<4|src[1]>>4]
		out[group*4+2] = base64Chars[(src[1]&0x0f)<<2|src[2]>>6]
		out[group*4+3] = base64Chars[src[2]&0x3f]
		src = src[3:]
	}
	out[12] = base64Chars[src[0]>>2]
	out[13] = base64Chars[(src[0]&0x03)<<4]
	return string(out)
}

func base64Value(ch byte) (uint8, bool) {
	switch {
	case ch >= 'A' && ch <= 'Z':
		return ch - 'A', true
	case ch >= 'a' && ch <= 'z':
		return ch - 'a' + 26, true
	case ch >= '0' && ch <= '9':
		return ch - '0' + 52, true
	case ch == '+':
		return 62, true
	case ch == '/':
		return 63, true
	}
	return 0, false
}

// BoardFromPositionID decodes a position ID and validates the result
// with CheckPosition.
func BoardFromPositionID(posID string) (Board, error) {
	var board Board
	if len(posID) != PositionIDLength {
		return board, ErrInvalidPositionID
	}

	var vals [PositionIDLength]uint8
	for i := 0; i < PositionIDLength; i++ {
		v, ok := base64Value(posID[i])
		if !ok {
			return board, ErrInvalidPositionID
		}
		vals[i] = v
	}

	var key idKey
	for group := 0; group < 3; group++ {
		v := vals[group*4:]
		key[group*3] = v[0]<<2 | v[1]>>4
		key[group*3+1] = v[1]<<4 | v[2]>>2
		key[group*3+2] = v[2]<<6 | v[3]
	}
	key[9] = vals[12]<<2 | vals[13]>>4

	board, ok := boardFromIDKey(key)
	if !ok || !CheckPosition(board) {
		return board, ErrInvalidPositionID
	}
	return board, nil
}

// CheckPosition reports whether a board could occur in play: no player
// owns more than 15 checkers and no point is shared.
func CheckPosition(board Board) bool {
	for player := 0; player < 2; player++ {
		total := 0
		for slot := 0; slot < Slots; slot++ {
			total += int(board[player][slot])
		}
		if total > MaxCheckers {
			return false
		}
	}

	// Slot i for one player is slot 23-i for the other.
	for i := 0; i < BarSlot; i++ {
		if board[0][i] > 0 && board[1][BarSlot-1-i] > 0 {
			return false
		}
	}
	return true
}

// SwapSides exchanges the player on roll and the opponent.
func SwapSides(board Board) Board {
	return Board{board[1], board[0]}
}
