package interview

import (
	"regexp"
	"strings"
)

// The persona can end the meeting unilaterally (abusive input, conduct) by
// wrapping its final in-character line in [END_MEETING]...[/END_MEETING]
// inside the completion text. This is the only control channel the model
// has, so the parser is part of the session control plane, not just display
// formatting. Callers must only pass fully settled assistant messages,
// never a partial stream, where a half-written delimiter would misparse.

var endMeetingRe = regexp.MustCompile(`(?s)\[END_MEETING\](.*?)\[/END_MEETING\]`)

// EndMeetingResult is the structured view of an assistant message after
// control-marker extraction. The rest of the system only ever sees this,
// never raw delimiter text.
type EndMeetingResult struct {
	DisplayContent string
	MeetingEnded   bool
	FinalMessage   string
}

// ParseEndMeeting extracts the end-meeting marker from a settled assistant
// message. On a match (first, non-greedy) the trimmed inner text becomes
// both FinalMessage and DisplayContent; any stray model preamble around the
// delimiters is dropped from the display path. Without a marker the content
// passes through unchanged.
func ParseEndMeeting(content string) EndMeetingResult {
	m := endMeetingRe.FindStringSubmatch(content)
	if m == nil {
		return EndMeetingResult{DisplayContent: content}
	}
	final := strings.TrimSpace(m[1])
	return EndMeetingResult{
		DisplayContent: final,
		MeetingEnded:   true,
		FinalMessage:   final,
	}
}
