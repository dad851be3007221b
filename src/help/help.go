// Package help prints help messages about bkvalidate's config options and concepts.
package help

import (
	"fmt"
	"sort"
	"strings"

	"github.com/texttheater/golang-levenshtein/levenshtein"

	"github.com/zachgrayio/bkvalidate/src/core"
)

const topicsHelpMessage = `
The following help topics are available:

%s`

// maxSuggestionDistance is the maximum Levenshtein edit distance we'll suggest help topics at.
const maxSuggestionDistance = 4

type helpSection struct {
	Preamble string
	Topics   map[string]string
}

// Help prints help on a particular topic.
// It returns true if the topic is known or false if it isn't.
func Help(topic string, config *core.Configuration) bool {
	if message := help(topic, config); message != "" {
		fmt.Println(message)
		return true
	}
	fmt.Printf("Sorry, can't help you with %s\n", topic)
	if message := suggest(topic, config); message != "" {
		fmt.Println(message)
	} else {
		fmt.Println("\nTry bkvalidate help topics to see what's available.")
	}
	return false
}

// Topics returns the help topics beginning with the given prefix, sorted.
func Topics(prefix string, config *core.Configuration) []string {
	topics := []string{}
	for _, section := range []helpSection{allConfigHelp(config), miscTopics} {
		for t := range section.Topics {
			if strings.HasPrefix(t, prefix) {
				topics = append(topics, t)
			}
		}
	}
	sort.Strings(topics)
	return topics
}

func help(topic string, config *core.Configuration) string {
	topic = strings.ToLower(topic)
	if topic == "topics" {
		return fmt.Sprintf(topicsHelpMessage, strings.Join(Topics("", config), "\n"))
	}
	for _, section := range []helpSection{allConfigHelp(config), miscTopics} {
		if message, found := section.Topics[topic]; found {
			message = strings.TrimSpace(message)
			if section.Preamble == "" {
				return message
			}
			return fmt.Sprintf(section.Preamble+"\n\n", topic) + message
		}
	}
	return ""
}

// suggest returns a message suggesting topics close to the given one, or the empty string if
// there aren't any.
func suggest(topic string, config *core.Configuration) string {
	r := []rune(topic)
	type option struct {
		topic string
		dist  int
	}
	var options []option
	for _, t := range Topics("", config) {
		if dist := levenshtein.DistanceForStrings(r, []rune(t), levenshtein.DefaultOptions); dist <= maxSuggestionDistance {
			options = append(options, option{topic: t, dist: dist})
		}
	}
	if len(options) == 0 {
		return ""
	}
	sort.SliceStable(options, func(i, j int) bool { return options[i].dist < options[j].dist })
	msg := "\nMaybe you meant "
	for i, o := range options {
		if i > 0 {
			if i < len(options)-1 {
				msg += " , "
			} else {
				msg += " or "
			}
		}
		msg += o.topic
	}
	return msg + " ?"
}
