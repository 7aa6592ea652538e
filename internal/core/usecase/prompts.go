package usecase

import (
	"fmt"
	"strings"

	"github.com/uptiq/policy-rag/internal/core/domain"
)

type stepBackExample struct {
	input  string
	output string
}

var stepBackExamples = []stepBackExample{
	{
		input:  "Can I carry forward 8 unused annual leave days into the next year?",
		output: "What is Uptiq's policy on carrying forward unused annual leave?",
	},
	{
		input:  "Do I get reimbursed if I buy my own Wi-Fi router while working from home?",
		output: "What expenses are reimbursed under Uptiq's Work From Home policy?",
	},
}

func buildMultiQueryPrompt(question string) domain.Prompt {
	return domain.UserPrompt(`You are an AI language model assistant. Your task is to generate five
different versions of the given user question to retrieve relevant documents from a vector
database. By generating multiple perspectives on the user question, your goal is to help
the user overcome some of the limitations of the distance-based similarity search.
Provide these alternative questions separated by newlines. Original question: ` + question)
}

func buildRAGFusionPrompt(question string) domain.Prompt {
	return domain.UserPrompt(fmt.Sprintf(`You are a helpful assistant that generates multiple search queries based on a single input query.
Generate multiple search queries related to: %s
Output (4 queries):`, question))
}

func buildDecompositionPrompt(question string) domain.Prompt {
	return domain.UserPrompt(fmt.Sprintf(`You are a helpful assistant that generates multiple sub-questions related to an input question.
The goal is to break down the input into a set of sub-problems / sub-questions that can be answered in isolation.
Generate multiple search queries related to: %s
Output (3 queries):`, question))
}

func buildStepBackPrompt(question string) domain.Prompt {
	messages := []domain.PromptMessage{{
		Role: domain.RoleSystem,
		Content: "You are an AI assistant trained on HR policies of Uptiq. Your task is to step back and paraphrase a question " +
			"to a more generic step-back question, which is easier to answer. Here are a few examples:",
	}}
	for _, ex := range stepBackExamples {
		messages = append(messages,
			domain.PromptMessage{Role: domain.RoleUser, Content: ex.input},
			domain.PromptMessage{Role: domain.RoleAssistant, Content: ex.output},
		)
	}
	messages = append(messages, domain.PromptMessage{Role: domain.RoleUser, Content: question})
	return domain.Prompt{Messages: messages}
}

func buildHyDEPrompt(question string) domain.Prompt {
	return domain.UserPrompt(fmt.Sprintf(`Please write a scientific paper passage to answer the question
Question: %s
Passage:`, question))
}

func buildRoutingPrompt(question string, labels []string) domain.Prompt {
	return domain.Prompt{Messages: []domain.PromptMessage{
		{
			Role: domain.RoleSystem,
			Content: `You are an expert at routing a user question to the appropriate data source.
Given a user question, choose which HR policy file would be most relevant for answering their question.
Answer with exactly one of: ` + strings.Join(labels, ", "),
		},
		{Role: domain.RoleUser, Content: question},
	}}
}

func buildAnswerPrompt(contextText, question string) domain.Prompt {
	return domain.UserPrompt(fmt.Sprintf(`You are an assistant for question-answering tasks. Use the following pieces of retrieved context to answer the question.
If you don't know the answer, just say that you don't know. Use three sentences maximum and keep the answer concise.
Question: %s
Context: %s
Answer:`, question, contextText))
}

func buildDecomposedPrompt(transcript, question string) domain.Prompt {
	return domain.UserPrompt(fmt.Sprintf(`Here is a set of Q+A pairs:

%s

Use these to synthesize an answer to the original question: %s
`, transcript, question))
}

func buildStepBackAnswerPrompt(normalContext, stepBackContext, question string) domain.Prompt {
	return domain.UserPrompt(fmt.Sprintf(`You are an AI assistant trained on HR policies of Uptiq. I am going to ask you a question. Your response should be comprehensive and not contradicted with the following context if they are relevant. Otherwise, ignore them if they are not relevant.

# Normal Context
%s

# Step-Back Context
%s

# Original Question: %s
# Answer:`, normalContext, stepBackContext, question))
}

// formatQAPairs renders 1-indexed Q/A pairs separated by a blank line.
func formatQAPairs(questions, answers []string) string {
	var b strings.Builder
	for i := range questions {
		fmt.Fprintf(&b, "Question %d: %s\nAnswer %d: %s\n\n", i+1, questions[i], i+1, answers[i])
	}
	return strings.TrimSpace(b.String())
}
