package game

import (
	"errors"
	"fmt"
)

// Choice — один из ходов игрового цикла (камень, ножницы и т.д.).
type Choice string

const (
	Rock     Choice = "rock"
	Paper    Choice = "paper"
	Scissors Choice = "scissors"
	Spock    Choice = "spock"
	Lizard   Choice = "lizard"
)

// Outcome — исход сравнения двух одновременных ходов.
type Outcome int

const (
	OutcomeTie Outcome = iota
	OutcomeP1Wins
	OutcomeP2Wins
)

func (o Outcome) String() string {
	switch o {
	case OutcomeP1Wins:
		return "participant1_wins"
	case OutcomeP2Wins:
		return "participant2_wins"
	default:
		return "tie"
	}
}

var (
	ErrCycleTooShort      = errors.New("choice cycle needs at least 3 choices")
	ErrCycleEvenLength    = errors.New("choice cycle must have odd length")
	ErrCycleDuplicate     = errors.New("choice cycle contains duplicate choices")
	ErrUnknownRuleSetName = errors.New("unknown rule set name")
)

// RuleSet — полная таблица исходов над конечным набором ходов.
// Resolve — чистая тотальная функция: расширение набора ходов меняет
// данные таблицы, а не логику вызывающих.
type RuleSet struct {
	name    string
	choices []Choice
	table   map[[2]Choice]Outcome
}

// NewCycleRuleSet строит RuleSet из упорядоченного цикла нечётной длины:
// ход i бьёт ход j, если (i-j) mod n нечётно. Для трёх ходов это даёт
// классические камень/ножницы/бумагу, для пяти — канонический
// пятиходовый вариант. Каждый ход бьёт ровно (n-1)/2 других и проигрывает
// стольким же.
func NewCycleRuleSet(name string, choices ...Choice) (*RuleSet, error) {
	n := len(choices)
	if n < 3 {
		return nil, ErrCycleTooShort
	}
	if n%2 == 0 {
		return nil, ErrCycleEvenLength
	}
	seen := make(map[Choice]struct{}, n)
	for _, c := range choices {
		if _, dup := seen[c]; dup {
			return nil, fmt.Errorf("%w: %q", ErrCycleDuplicate, c)
		}
		seen[c] = struct{}{}
	}

	table := make(map[[2]Choice]Outcome, n*n)
	for i, a := range choices {
		for j, b := range choices {
			switch {
			case i == j:
				table[[2]Choice{a, b}] = OutcomeTie
			case (i-j+n)%n%2 == 1:
				table[[2]Choice{a, b}] = OutcomeP1Wins
			default:
				table[[2]Choice{a, b}] = OutcomeP2Wins
			}
		}
	}

	rs := &RuleSet{
		name:    name,
		choices: append([]Choice(nil), choices...),
		table:   table,
	}
	return rs, nil
}

// Classic — камень/ножницы/бумага.
func Classic() *RuleSet {
	rs, err := NewCycleRuleSet("classic", Rock, Paper, Scissors)
	if err != nil {
		panic(err) // статический набор, ошибка невозможна
	}
	return rs
}

// FiveChoice — пятиходовый цикл (rock/paper/scissors/spock/lizard).
func FiveChoice() *RuleSet {
	rs, err := NewCycleRuleSet("five_choice", Rock, Paper, Scissors, Spock, Lizard)
	if err != nil {
		panic(err)
	}
	return rs
}

// ByName возвращает встроенный набор правил по имени из конфигурации турнира.
func ByName(name string) (*RuleSet, error) {
	switch name {
	case "classic", "":
		return Classic(), nil
	case "five_choice":
		return FiveChoice(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownRuleSetName, name)
	}
}

func (r *RuleSet) Name() string { return r.name }

// Choices возвращает копию набора ходов в порядке цикла.
func (r *RuleSet) Choices() []Choice {
	return append([]Choice(nil), r.choices...)
}

// Valid сообщает, принадлежит ли ход набору.
func (r *RuleSet) Valid(c Choice) bool {
	_, ok := r.table[[2]Choice{c, c}]
	return ok
}

// Resolve возвращает исход для пары одновременных ходов. Входы должны быть
// предварительно проверены через Valid — движок матча делает это до вызова.
func (r *RuleSet) Resolve(a, b Choice) Outcome {
	return r.table[[2]Choice{a, b}]
}
