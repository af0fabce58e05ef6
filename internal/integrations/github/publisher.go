// Package github publishes storefront files through the GitHub contents API.
package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const DefaultBaseURL = "https://api.github.com"

var ErrNotConfigured = errors.New("github configuration incomplete")

type Publisher struct {
	baseURL string
	token   string
	owner   string
	repo    string
	branch  string
	httpc   *http.Client
}

func New(baseURL, token, owner, repo, branch string) *Publisher {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if branch == "" {
		branch = "main"
	}
	return &Publisher{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		owner:   owner,
		repo:    repo,
		branch:  branch,
		httpc: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Configured reports whether token, owner and repo are all set.
func (p *Publisher) Configured() bool {
	return p.token != "" && p.owner != "" && p.repo != ""
}

type contentsReq struct {
	Message string `json:"message"`
	Content string `json:"content"`
	Branch  string `json:"branch"`
	SHA     string `json:"sha,omitempty"`
}

type contentsResp struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
}

// PublishFile creates or replaces repoPath on the configured branch.
func (p *Publisher) PublishFile(ctx context.Context, repoPath string, content []byte, message string) error {
	if !p.Configured() {
		return ErrNotConfigured
	}
	if message == "" {
		message = "Update " + path.Base(repoPath)
	}

	sha, err := p.fileSHA(ctx, repoPath)
	if err != nil {
		return err
	}

	body, err := json.Marshal(contentsReq{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  p.branch,
		SHA:     sha,
	})
	if err != nil {
		return errors.Wrap(err, "encode body")
	}

	req, err := p.newRequest(ctx, http.MethodPut, repoPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated {
		return nil
	}
	var r contentsResp
	_ = json.NewDecoder(resp.Body).Decode(&r)
	if r.Message == "" {
		r.Message = "unknown error"
	}
	return fmt.Errorf("github api error (http %d): %s", resp.StatusCode, r.Message)
}

// PublishImage uploads a local file to repoPath.
func (p *Publisher) PublishImage(ctx context.Context, localPath, repoPath string) error {
	data, err := os.ReadFile(localPath)
	if err != nil {
		return errors.Wrap(err, "read image")
	}
	return p.PublishFile(ctx, repoPath, data, "Add image: "+path.Base(repoPath))
}

// fileSHA returns the blob sha of an existing file, or "" when the file is new.
func (p *Publisher) fileSHA(ctx context.Context, repoPath string) (string, error) {
	req, err := p.newRequest(ctx, http.MethodGet, repoPath, nil)
	if err != nil {
		return "", err
	}
	q := req.URL.Query()
	q.Set("ref", p.branch)
	req.URL.RawQuery = q.Encode()

	resp, err := p.httpc.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "do request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", nil
	}
	var r contentsResp
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", errors.Wrap(err, "decode")
	}
	return r.SHA, nil
}

func (p *Publisher) newRequest(ctx context.Context, method, repoPath string, body *bytes.Reader) (*http.Request, error) {
	u := fmt.Sprintf("%s/repos/%s/%s/contents/%s", p.baseURL, p.owner, p.repo, strings.TrimLeft(repoPath, "/"))

	var (
		req *http.Request
		err error
	)
	if body != nil {
		req, err = http.NewRequestWithContext(ctx, method, u, body)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, u, nil)
	}
	if err != nil {
		return nil, errors.Wrap(err, "new request")
	}
	req.Header.Set("Authorization", "Bearer "+p.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
	return req, nil
}
