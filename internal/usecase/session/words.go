package usecase_session

import "math/rand"

// wordPool is the fixed pool rounds draw from. Picks are uniform with no
// de-duplication against the session's history.
var wordPool = []string{
	"apple",
	"car",
	"house",
	"cat",
	"dog",
	"ball",
	"tree",
	"star",
	"book",
	"phone",
	"chair",
	"pizza",
}

func pickWord() string {
	return wordPool[rand.Intn(len(wordPool))]
}
