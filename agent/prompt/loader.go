package prompt

import (
	_ "embed"
	"strings"
)

var (
	//go:embed template/classifier.txt
	classifierRaw string

	//go:embed template/extractor.txt
	extractorRaw string

	//go:embed template/recommender.txt
	recommenderRaw string

	//go:embed template/summarizer.txt
	summarizerRaw string
)

// PromptSet holds loaded prompt content.
type PromptSet struct {
	Classifier  string
	Extractor   string
	Recommender string
	Summarizer  string
}

// LoadPromptSet returns a PromptSet with trimmed prompt strings.
// Safe to call concurrently; the embed is compile-time.
func LoadPromptSet() PromptSet {
	return PromptSet{
		Classifier:  strings.TrimSpace(classifierRaw),
		Extractor:   strings.TrimSpace(extractorRaw),
		Recommender: strings.TrimSpace(recommenderRaw),
		Summarizer:  strings.TrimSpace(summarizerRaw),
	}
}
