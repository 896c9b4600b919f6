package github

import (
	"fmt"
)

// =============================================================================
// Result shaping: everything an agent sees from the issue tools is built here
// =============================================================================

func createdMessage(title string, number int) string {
	return fmt.Sprintf("Issue '%s' created with number %d.", title, number)
}

func closedMessage(number int) string {
	return fmt.Sprintf("Issue %d closed.", number)
}

// failureMessage embeds the upstream status code and raw body. A zero status
// means the request never got a response.
func failureMessage(op string, status int, detail string) string {
	if status == 0 {
		return fmt.Sprintf("Failed to %s issue: %s", op, detail)
	}
	return fmt.Sprintf("Failed to %s issue: %d - %s", op, status, detail)
}

func invalidRepoMessage(op, repo string) string {
	return fmt.Sprintf("Failed to %s issue: invalid repository %q (expected owner/name)", op, repo)
}
