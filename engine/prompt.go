package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/BaSui01/flowturn/flow"
	"github.com/BaSui01/flowturn/memory"
	"github.com/BaSui01/flowturn/tokenizer"
	"github.com/BaSui01/flowturn/types"
)

const systemRoot = `You are the conversation controller of a node-based dialogue flow.
On every turn you MUST first call the %s tool to advance or hold the flow, before any other tool and before answering.
After the transition you may call other tools as needed, then answer the user in plain text.
Never mention nodes, tools, or the flow structure to the user.

Current node: %s (%s)
Node guidance: %s`

// Assembler builds the ordered message sequence of one turn. It is a pure
// transform: same inputs, same messages.
type Assembler struct {
	counter     tokenizer.Counter
	tokenBudget int
}

// NewAssembler creates a prompt assembler. The token budget bounds the raw
// history window; the most recent exchange is always included regardless.
func NewAssembler(counter tokenizer.Counter, tokenBudget int) *Assembler {
	if counter == nil {
		counter = tokenizer.NewEstimator()
	}
	if tokenBudget <= 0 {
		tokenBudget = 4096
	}
	return &Assembler{counter: counter, tokenBudget: tokenBudget}
}

// Assemble produces the message sequence: system root, optional facts,
// optional summary, a token-bounded window of raw history, then the new user
// message.
func (a *Assembler) Assemble(node *flow.Node, mem types.MemoryState, history types.History, userMessage string) []types.Message {
	messages := []types.Message{
		types.NewSystemMessage(a.systemMessage(node)),
	}

	if facts := formatFacts(mem.Facts); facts != "" {
		messages = append(messages, types.NewSystemMessage(facts))
	}
	if summary := memory.FormatActive(mem.Summary); summary != "" {
		messages = append(messages, types.NewSystemMessage(
			"Summary of the earlier conversation:\n"+summary))
	}

	for _, entry := range a.window(history) {
		messages = append(messages, types.NewMessage(entry.Role, entry.Content))
	}

	return append(messages, types.NewUserMessage(userMessage))
}

func (a *Assembler) systemMessage(node *flow.Node) string {
	var options strings.Builder
	if node.Type == flow.NodeConversation {
		options.WriteString("\nAvailable options:\n")
		for _, opt := range node.Options {
			fmt.Fprintf(&options, "  %d: %s\n", opt.ID, opt.Label)
		}
		fmt.Fprintf(&options, "  %d: remain in the current node\n", flow.RemainOption)
	}
	return fmt.Sprintf(systemRoot, TransitionToolName, node.ID, node.Type, node.Prompt) + options.String()
}

// window selects the recent history suffix that fits the token budget. The
// last two entries (the most recent exchange) are always kept.
func (a *Assembler) window(history types.History) types.History {
	if len(history) == 0 {
		return nil
	}

	start := len(history)
	used := 0
	for i := len(history) - 1; i >= 0; i-- {
		n, err := a.counter.CountTokens(history[i].Content)
		if err != nil {
			n = len(history[i].Content) / 4
		}
		if used+n > a.tokenBudget && len(history)-i > 2 {
			break
		}
		used += n
		start = i
	}
	return history[start:]
}

func formatFacts(facts types.Facts) string {
	if len(facts) == 0 {
		return ""
	}
	keys := make([]string, 0, len(facts))
	for k := range facts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("Known facts about this conversation:\n")
	for _, k := range keys {
		fmt.Fprintf(&b, "- %s: %s\n", k, facts[k].Value)
	}
	return strings.TrimRight(b.String(), "\n")
}
