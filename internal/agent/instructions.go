package agent

import (
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/synchire/interview-agent/internal/completion"
)

const defaultInstructions = `You are a professional AI interviewer for SyncHire.

Your role:
1. Greet the candidate warmly and professionally
2. Ask interview questions one at a time
3. Listen carefully to their responses
4. Ask 1-2 follow-up questions for clarification
5. Be supportive and encouraging
6. Maintain a conversational, natural tone
7. After the planned questions, thank the candidate and end the interview

Guidelines:
- Speak clearly and at a moderate pace
- Don't interrupt the candidate
- Be patient and understanding
- Keep questions focused and specific`

// LoadInstructions reads the interviewer system prompt from path, falling
// back to a built-in default when the file is absent.
func LoadInstructions(path string, log logrus.FieldLogger) string {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if path == "" {
		return defaultInstructions
	}

	data, err := os.ReadFile(path)
	if err != nil {
		log.WithError(err).WithField("path", path).Warn("instructions file not found, using default")
		return defaultInstructions
	}
	log.WithField("path", path).Info("loaded interviewer instructions")
	return string(data)
}

// PersonalizeInstructions appends the interview context to the base prompt:
// who is being interviewed, for which role, and the ordered question plan.
func PersonalizeInstructions(base string, plan []completion.Question, candidateName, jobTitle string) string {
	var questions strings.Builder
	for i, q := range plan {
		fmt.Fprintf(&questions, "%d. %s\n", i+1, q.Text)
	}

	return fmt.Sprintf(`%s

INTERVIEW CONTEXT:
- Candidate: %s
- Position: %s

QUESTIONS TO ASK (in order):
%s
Start the interview by greeting %s and asking the first question.
After each answer, either ask a follow-up or move to the next question.`,
		strings.TrimSpace(base), candidateName, jobTitle, questions.String(), candidateName)
}
