package ollama

import "fmt"

// The answer prompt constrains the model to the supplied context and to the
// [Source N] citation format that citation resolution parses afterwards.
const answerPromptTemplate = `You are a helpful AI assistant that answers questions based on provided document excerpts.

INSTRUCTIONS:
1. Answer ONLY based on the provided context
2. If the context doesn't contain enough information, say "I don't have enough information to answer this question based on the provided documents."
3. Always cite your sources using [Source X] format where X is the source number
4. Be concise but comprehensive
5. If multiple sources support the same point, cite all relevant sources
6. Do not make up information not present in the context
7. Structure your answer clearly with proper formatting

CONTEXT:
%s

USER QUESTION: %s

Please provide a well-structured answer with proper citations.`

func buildAnswerPrompt(question, contextBlock string) string {
	return fmt.Sprintf(answerPromptTemplate, contextBlock, question)
}
