package dealer

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/biscalabs/biscagate/internal/model"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

var (
	rankNames = []string{"Ace", "2", "3", "4", "5", "6", "7", "8", "9", "10", "Jack", "Queen", "King"}
	suitNames = []string{"Clubs", "Diamonds", "Hearts", "Spades"}
)

// Rank returns the 0-based rank index of a card: 0 = Ace .. 12 = King.
func Rank(c model.Card) int {
	return (int(c) - 1) % 13
}

// Suit returns the 0-based suit index: Clubs, Diamonds, Hearts, Spades.
func Suit(c model.Card) int {
	return (int(c) - 1) / 13
}

// CardName renders "Ace of Spades" style names for events and responses.
func CardName(c model.Card) string {
	if c < 1 || c > 52 {
		return fmt.Sprintf("invalid(%d)", c)
	}
	return fmt.Sprintf("%s of %s", rankNames[Rank(c)], suitNames[Suit(c)])
}

// hardValue is the card's blackjack value counting Ace as 1.
func hardValue(c model.Card) int {
	rank := Rank(c)
	switch {
	case rank == 0:
		return 1
	case rank >= 9: // 10, Jack, Queen, King
		return 10
	default:
		return rank + 1
	}
}

// HandValue scores a blackjack hand with soft-ace adjustment: the highest
// total not exceeding 21 if achievable, else the lowest. Only one ace can
// count as 11; a second would always bust.
func HandValue(cards []model.Card) int {
	total := 0
	aces := 0
	for _, c := range cards {
		total += hardValue(c)
		if Rank(c) == 0 {
			aces++
		}
	}
	if aces > 0 && total+10 <= 21 {
		total += 10
	}
	return total
}

// DeriveCard expands one fulfilled random word into the index-th card of
// the hash chain:
//
//	card = (keccak256(word_be32 || index_be8) mod 52) + 1
//
// The index is strictly increasing per game, so every draw of a hand is a
// pure function of (word sequence, draw order) and can be replayed.
func DeriveCard(word *big.Int, index uint64) model.Card {
	seed := common.LeftPadBytes(word.Bytes(), 32)
	var idx [8]byte
	binary.BigEndian.PutUint64(idx[:], index)

	digest := crypto.Keccak256(seed, idx[:])
	n := new(big.Int).SetBytes(digest)
	return model.Card(n.Mod(n, big.NewInt(52)).Uint64() + 1)
}

// DeriveCards derives count successive cards starting at the given cursor.
func DeriveCards(word *big.Int, cursor uint64, count int) []model.Card {
	out := make([]model.Card, count)
	for i := range out {
		out[i] = DeriveCard(word, cursor+uint64(i))
	}
	return out
}
