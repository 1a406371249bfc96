package dealer

import (
	"math/big"
	"testing"

	"github.com/biscalabs/biscagate/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCardMapping(t *testing.T) {
	assert.Equal(t, "Ace of Clubs", CardName(1))
	assert.Equal(t, "King of Clubs", CardName(13))
	assert.Equal(t, "Ace of Diamonds", CardName(14))
	assert.Equal(t, "Queen of Hearts", CardName(38))
	assert.Equal(t, "King of Spades", CardName(52))
	assert.Equal(t, "invalid(0)", CardName(0))
	assert.Equal(t, "invalid(53)", CardName(53))
}

func TestHandValue(t *testing.T) {
	// Card indices: 1 = Ace, 5 = Five, 9 = Nine, 10 = Ten, 11 = Jack,
	// 12 = Queen, 13 = King (all clubs).
	cases := []struct {
		name  string
		cards []model.Card
		want  int
	}{
		{"empty", nil, 0},
		{"single ace counts eleven", []model.Card{1}, 11},
		{"blackjack", []model.Card{1, 13}, 21},
		{"two aces", []model.Card{1, 14}, 12},
		{"soft seventeen", []model.Card{1, 6}, 17},
		{"ace demoted after hit", []model.Card{1, 6, 10}, 17},
		{"ace ace nine", []model.Card{1, 14, 9}, 21},
		{"face cards are ten", []model.Card{11, 12}, 20},
		{"bust", []model.Card{13, 12, 5}, 25},
		{"twenty one hard", []model.Card{7, 7, 7}, 21},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HandValue(tc.cards))
		})
	}
}

func TestDeriveCard_Deterministic(t *testing.T) {
	word := big.NewInt(123456789)

	first := DeriveCard(word, 0)
	again := DeriveCard(word, 0)
	assert.Equal(t, first, again)
	assert.GreaterOrEqual(t, uint8(first), uint8(1))
	assert.LessOrEqual(t, uint8(first), uint8(52))

	// A different index or a different word moves the card somewhere in
	// range, still deterministically.
	other := DeriveCard(word, 1)
	assert.GreaterOrEqual(t, uint8(other), uint8(1))
	assert.LessOrEqual(t, uint8(other), uint8(52))
	assert.Equal(t, other, DeriveCard(word, 1))
}

func TestDeriveCards_MatchesChain(t *testing.T) {
	word, ok := new(big.Int).SetString("deadbeefcafebabe", 16)
	require.True(t, ok)

	cards := DeriveCards(word, 5, 4)
	require.Len(t, cards, 4)
	for i, c := range cards {
		assert.Equal(t, DeriveCard(word, 5+uint64(i)), c)
	}
}

func TestDeriveCards_AllInRange(t *testing.T) {
	word := big.NewInt(42)
	for _, c := range DeriveCards(word, 0, 200) {
		assert.GreaterOrEqual(t, uint8(c), uint8(1))
		assert.LessOrEqual(t, uint8(c), uint8(52))
	}
}

func TestRankSuit(t *testing.T) {
	assert.Equal(t, 0, Rank(1))
	assert.Equal(t, 12, Rank(13))
	assert.Equal(t, 0, Rank(14))
	assert.Equal(t, 0, Suit(13))
	assert.Equal(t, 1, Suit(14))
	assert.Equal(t, 3, Suit(52))
}
