package llmclient

import "context"

// StubClient is a canned LLMClient for tests of callers that depend on the
// LLMClient interface (pkg/strategy's LLM extraction strategy) without
// exercising real HTTP transport.
type StubClient struct {
	// Response is returned verbatim from Complete, unless Err is set.
	Response CompleteResult
	Err      error
	// Calls records every request Complete received, for assertions.
	Calls []CompleteRequest
}

func (s *StubClient) Complete(_ context.Context, _ string, req CompleteRequest) (CompleteResult, error) {
	s.Calls = append(s.Calls, req)
	if s.Err != nil {
		return CompleteResult{}, s.Err
	}
	return s.Response, nil
}

var _ LLMClient = (*StubClient)(nil)
