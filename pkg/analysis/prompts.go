package analysis

import (
	"fmt"
	"strings"
)

// Prompt builders. Each returns the full prompt for one stage; exclusion
// lists are passed verbatim so a refresh never repeats existing items.

func summaryPrompt(source string) string {
	return "Analyze the following book text. Provide its title, author, an " +
		"overall summary, and a per-chapter summary.\n\nBOOK TEXT:\n" + source
}

func quotesPrompt(source string, count int, exclude []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Select exactly %d notable quotes from the book text. "+
		"For each, give the verbatim quote, a translation, and the reason it matters.\n", count)
	writeExclusions(&sb, "quotes", exclude)
	sb.WriteString("\nBOOK TEXT:\n")
	sb.WriteString(source)
	return sb.String()
}

func vocabPrompt(source string, count int, exclude []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Pick exactly %d vocabulary words worth learning from the "+
		"book text. For each, give the word, a concise definition, and an example sentence.\n", count)
	writeExclusions(&sb, "words", exclude)
	sb.WriteString("\nBOOK TEXT:\n")
	sb.WriteString(source)
	return sb.String()
}

func quizPrompt(source string, count int, exclude []string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Write exactly %d multiple-choice comprehension questions "+
		"about the book text. Each has four options, the index of the correct "+
		"option, and a short explanation.\n", count)
	writeExclusions(&sb, "questions", exclude)
	sb.WriteString("\nBOOK TEXT:\n")
	sb.WriteString(source)
	return sb.String()
}

func actionPlanPrompt(source string) string {
	return "Derive a practical action plan from the ideas in the book text. " +
		"Each item has a short title and a concrete description.\n\nBOOK TEXT:\n" + source
}

func readerPrompt(chunk string) string {
	return "Split the following text into readable segments of a few sentences " +
		"each. For every segment return the original text and its translation.\n\nTEXT:\n" + chunk
}

func reviewPrompt(source, style string) string {
	return fmt.Sprintf("Write a book review in the style of %s, grounded in the "+
		"book text below.\n\nBOOK TEXT:\n%s", style, source)
}

func podcastPrompt(source string, speakers []string) string {
	return fmt.Sprintf("Write a podcast episode about the book text below, as a "+
		"dialogue between %s. Return a title and the ordered script, each line "+
		"attributed to its speaker.\n\nBOOK TEXT:\n%s",
		strings.Join(speakers, " and "), source)
}

func writeExclusions(sb *strings.Builder, what string, exclude []string) {
	if len(exclude) == 0 {
		return
	}
	fmt.Fprintf(sb, "Do not repeat any of these existing %s:\n", what)
	for _, e := range exclude {
		sb.WriteString("- ")
		sb.WriteString(e)
		sb.WriteByte('\n')
	}
}
