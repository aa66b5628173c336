package reddit

import (
	"context"
	"fmt"
	"html"
	"net/http"
	"regexp"
	"strings"

	"github.com/mmcdole/gofeed"
)

var tagPattern = regexp.MustCompile(`<[^>]*>`)

// The feed carries ~25 entries; the emitted set only needs to outlast the
// window in which an entry can still reappear in a fetch.
const emittedLimit = 1000

// Stream pulls new comments from the subreddit's public comment feed. Next
// returns comments oldest-first and yields a (nil, nil) tick when a fetch
// brings nothing new, so the caller can sleep its poll interval and check
// for pending cancellation between polls. The feed always repeats its most
// recent entries, so the stream remembers what it has already emitted;
// cross-restart de-duplication stays the caller's concern.
type Stream struct {
	httpClient   *http.Client
	parser       *gofeed.Parser
	feedURL      string
	userAgent    string
	pending      []*Comment
	emitted      map[string]struct{}
	emittedOrder []string
}

func NewStream(httpClient *http.Client, subreddit, userAgent string) *Stream {
	return &Stream{
		httpClient: httpClient,
		parser:     gofeed.NewParser(),
		feedURL:    fmt.Sprintf("https://www.reddit.com/r/%s/comments/.rss", subreddit),
		userAgent:  userAgent,
		emitted:    make(map[string]struct{}),
	}
}

func (s *Stream) Next(ctx context.Context) (*Comment, error) {
	if len(s.pending) == 0 {
		if err := s.fetch(ctx); err != nil {
			return nil, err
		}
	}

	if len(s.pending) == 0 {
		return nil, nil
	}

	comment := s.pending[0]
	s.pending = s.pending[1:]

	return comment, nil
}

func (s *Stream) fetch(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.feedURL, nil)
	if err != nil {
		return &RequestError{Err: err}
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return &RequestError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return &ServerError{StatusCode: resp.StatusCode}
	}
	if resp.StatusCode >= 400 {
		return &ResponseError{StatusCode: resp.StatusCode}
	}

	feed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return &ResponseError{StatusCode: resp.StatusCode, Err: err}
	}

	// The feed lists newest first; dispatch order should follow arrival order.
	for i := len(feed.Items) - 1; i >= 0; i-- {
		comment := itemToComment(feed.Items[i])
		if comment.Fingerprint == "" {
			continue
		}
		if _, ok := s.emitted[comment.Fingerprint]; ok {
			continue
		}
		s.remember(comment.Fingerprint)
		s.pending = append(s.pending, comment)
	}

	return nil
}

func (s *Stream) remember(fingerprint string) {
	if len(s.emittedOrder) >= emittedLimit {
		oldest := s.emittedOrder[0]
		s.emittedOrder = s.emittedOrder[1:]
		delete(s.emitted, oldest)
	}

	s.emitted[fingerprint] = struct{}{}
	s.emittedOrder = append(s.emittedOrder, fingerprint)
}

func itemToComment(item *gofeed.Item) *Comment {
	comment := &Comment{
		Fingerprint: item.GUID,
		Permalink:   item.Link,
		Body:        flattenHTML(item.Content),
	}

	if comment.Body == "" {
		comment.Body = flattenHTML(item.Description)
	}

	if len(item.Authors) > 0 {
		comment.Author = strings.TrimPrefix(item.Authors[0].Name, "/u/")
	}

	return comment
}

// flattenHTML reduces the feed's HTML comment body to whitespace-separated
// plain text, which is all the trigger parser needs.
func flattenHTML(content string) string {
	text := tagPattern.ReplaceAllString(content, " ")
	return strings.TrimSpace(html.UnescapeString(text))
}
