package game

import (
	"errors"
	"testing"
)

func TestClassicResolve(t *testing.T) {
	rs := Classic()

	tests := []struct {
		a, b     Choice
		expected Outcome
	}{
		{Rock, Rock, OutcomeTie},
		{Paper, Paper, OutcomeTie},
		{Scissors, Scissors, OutcomeTie},
		{Rock, Scissors, OutcomeP1Wins},
		{Paper, Rock, OutcomeP1Wins},
		{Scissors, Paper, OutcomeP1Wins},
		{Scissors, Rock, OutcomeP2Wins},
		{Rock, Paper, OutcomeP2Wins},
		{Paper, Scissors, OutcomeP2Wins},
	}

	for _, tc := range tests {
		if got := rs.Resolve(tc.a, tc.b); got != tc.expected {
			t.Errorf("Resolve(%s, %s) = %v, expected %v", tc.a, tc.b, got, tc.expected)
		}
	}
}

func TestFiveChoiceResolve(t *testing.T) {
	rs := FiveChoice()

	// Канонические пары победитель→проигравший.
	wins := []struct{ winner, loser Choice }{
		{Scissors, Paper},
		{Paper, Rock},
		{Rock, Lizard},
		{Lizard, Spock},
		{Spock, Scissors},
		{Scissors, Lizard},
		{Lizard, Paper},
		{Paper, Spock},
		{Spock, Rock},
		{Rock, Scissors},
	}

	for _, tc := range wins {
		if got := rs.Resolve(tc.winner, tc.loser); got != OutcomeP1Wins {
			t.Errorf("Resolve(%s, %s) = %v, expected P1 win", tc.winner, tc.loser, got)
		}
		if got := rs.Resolve(tc.loser, tc.winner); got != OutcomeP2Wins {
			t.Errorf("Resolve(%s, %s) = %v, expected P2 win", tc.loser, tc.winner, got)
		}
	}
}

// Антисимметрия и сбалансированность: каждый ход бьёт ровно (n-1)/2 других.
func TestCycleBalance(t *testing.T) {
	for _, rs := range []*RuleSet{Classic(), FiveChoice()} {
		choices := rs.Choices()
		n := len(choices)
		for _, a := range choices {
			beats := 0
			for _, b := range choices {
				if a == b {
					if rs.Resolve(a, b) != OutcomeTie {
						t.Errorf("%s: Resolve(%s, %s) must be a tie", rs.Name(), a, b)
					}
					continue
				}
				r1 := rs.Resolve(a, b)
				r2 := rs.Resolve(b, a)
				if r1 == OutcomeTie || r2 == OutcomeTie {
					t.Errorf("%s: distinct choices %s/%s must not tie", rs.Name(), a, b)
				}
				if (r1 == OutcomeP1Wins) == (r2 == OutcomeP1Wins) {
					t.Errorf("%s: Resolve(%s, %s) and Resolve(%s, %s) are not antisymmetric", rs.Name(), a, b, b, a)
				}
				if r1 == OutcomeP1Wins {
					beats++
				}
			}
			if beats != (n-1)/2 {
				t.Errorf("%s: %s beats %d choices, expected %d", rs.Name(), a, beats, (n-1)/2)
			}
		}
	}
}

func TestNewCycleRuleSetValidation(t *testing.T) {
	tests := []struct {
		name     string
		choices  []Choice
		expected error
	}{
		{"too short", []Choice{Rock, Paper}, ErrCycleTooShort},
		{"even length", []Choice{Rock, Paper, Scissors, Spock}, ErrCycleEvenLength},
		{"duplicate", []Choice{Rock, Paper, Rock}, ErrCycleDuplicate},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCycleRuleSet("custom", tc.choices...)
			if !errors.Is(err, tc.expected) {
				t.Errorf("expected %v, got %v", tc.expected, err)
			}
		})
	}
}

func TestByName(t *testing.T) {
	for name, size := range map[string]int{"classic": 3, "": 3, "five_choice": 5} {
		rs, err := ByName(name)
		if err != nil {
			t.Fatalf("ByName(%q) returned error: %v", name, err)
		}
		if len(rs.Choices()) != size {
			t.Errorf("ByName(%q) has %d choices, expected %d", name, len(rs.Choices()), size)
		}
	}

	if _, err := ByName("coin_flip"); !errors.Is(err, ErrUnknownRuleSetName) {
		t.Errorf("expected ErrUnknownRuleSetName, got %v", err)
	}
}

func TestValid(t *testing.T) {
	rs := Classic()
	if !rs.Valid(Rock) {
		t.Error("rock must be valid in classic")
	}
	if rs.Valid(Spock) {
		t.Error("spock must not be valid in classic")
	}
	if rs.Valid(Choice("dynamite")) {
		t.Error("unknown choice must not be valid")
	}
}
