package abuse

import "strings"

// commonWords is the escape list for the entropy rule: long natural sentences
// carry high entropy but also carry ordinary words.
var commonWords = map[string]bool{
	"the": true, "and": true, "you": true, "that": true, "have": true,
	"for": true, "not": true, "with": true, "this": true, "but": true,
	"his": true, "her": true, "from": true, "they": true, "say": true,
	"will": true, "one": true, "all": true, "would": true, "there": true,
	"their": true, "what": true, "out": true, "about": true, "who": true,
	"get": true, "which": true, "when": true, "make": true, "can": true,
	"like": true, "time": true, "just": true, "him": true, "know": true,
	"take": true, "into": true, "your": true, "good": true, "some": true,
	"could": true, "them": true, "see": true, "other": true, "than": true,
	"then": true, "now": true, "look": true, "only": true, "come": true,
	"its": true, "over": true, "think": true, "also": true, "back": true,
	"after": true, "use": true, "two": true, "how": true, "our": true,
	"work": true, "first": true, "well": true, "way": true, "even": true,
	"new": true, "want": true, "because": true, "any": true, "these": true,
	"give": true, "day": true, "most": true, "was": true, "are": true,
	"been": true, "has": true, "had": true, "were": true, "said": true,
	"did": true, "very": true, "thanks": true, "thank": true, "please": true,
	"hello": true, "help": true, "love": true, "loved": true, "great": true,
	"nice": true, "site": true, "website": true, "saying": true, "much": true,
	"really": true, "here": true, "more": true, "need": true, "hi": true,
	"hey": true,
}

// commonWordCount returns how many whitespace-separated words of s, lowered
// and stripped of punctuation, appear in the common-word list.
func commonWordCount(s string) int {
	count := 0
	for _, word := range strings.Fields(strings.ToLower(s)) {
		word = strings.Trim(word, ".,!?;:'\"()-")
		if commonWords[word] {
			count++
		}
	}
	return count
}
