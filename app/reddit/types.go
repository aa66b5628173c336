package reddit

// Comment is a single observed comment from the subreddit stream. Immutable
// once observed; the stream loop owns it for the duration of one dispatch.
type Comment struct {
	Fingerprint string // stable thing ID, e.g. "t1_abc123"
	Author      string
	Body        string
	Permalink   string
}
