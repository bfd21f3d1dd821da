package services

import (
	"math/rand"
	"strings"

	"typingclass/internal/models"
)

// Pools for the positional drill; a drill is a shuffled sample of these.
var (
	keyboardRows    = []string{"asdf", "jkl;", "qwer", "uiop", "zxcv", "bnm,"}
	pythonKeywords  = []string{"if", "else", "def", "for", "while", "and", "or", "not", "in", "is", "True", "False", "None"}
	pythonFunctions = []string{"print()", "input()", "len()", "str()", "int()", "float()", "bool()", "list()", "dict()"}
	symbols         = []string{"[]", "{}", "()", `""`, "''", ":", ";", ",", ".", "/", "?", "!", "@", "#", "$", "%", "^", "&", "*", "-", "+", "=", "_"}
)

var practiceTexts = map[models.Mode][]string{
	models.ModeWord: {
		"print input len str int float bool list dict tuple",
		"def if else elif for while and or not in is",
		"True False None return break continue pass",
		"append remove pop sort index count reverse",
		"range type isinstance hasattr getattr setattr",
	},
	models.ModeSentence: {
		`print("Hello, World!")`,
		`for i in range(10):`,
		`if x > 0 and x < 100:`,
		`name = input("Enter your name: ")`,
		`numbers = [1, 2, 3, 4, 5]`,
	},
	models.ModeParagraph: {
		"def factorial(n):\n    if n <= 1:\n        return 1\n    else:\n        return n * factorial(n - 1)",
		"numbers = [1, 2, 3, 4, 5]\nfor num in numbers:\n    if num % 2 == 0:\n        print(f\"{num} is even\")",
		"class Student:\n    def __init__(self, name, age):\n        self.name = name\n        self.age = age",
	},
}

// PracticeText picks a uniform random practice text for the mode. The
// positional drill is assembled fresh every time from the shuffled pools.
func PracticeText(mode models.Mode) string {
	if mode == models.ModePositional {
		return positionalDrill()
	}
	texts := practiceTexts[mode]
	return texts[rand.Intn(len(texts))]
}

func positionalDrill() string {
	items := make([]string, 0, len(keyboardRows)+len(pythonKeywords)+len(pythonFunctions)+len(symbols))
	items = append(items, keyboardRows...)
	items = append(items, pythonKeywords...)
	items = append(items, pythonFunctions...)
	items = append(items, symbols...)

	rand.Shuffle(len(items), func(i, j int) {
		items[i], items[j] = items[j], items[i]
	})

	// 15-20 items per drill
	n := 15 + rand.Intn(6)
	return strings.Join(items[:n], " ")
}
