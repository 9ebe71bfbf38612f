package message

import (
	"bufio"
	"bytes"
	"log/slog"
	"strconv"
	"strings"

	"github.com/loomwright/httpproxy/internal/proxyerr"
	"github.com/loomwright/httpproxy/internal/wire"
)

// ParseRequest reads a complete HTTP request from r: the header block,
// followed by a body framed per Transfer-Encoding/Content-Length.
func ParseRequest(r *bufio.Reader, id int64, log *slog.Logger) (*Request, error) {
	block, err := wire.ReadHeaderBlock(r)
	if err != nil {
		return nil, err
	}

	startLine, headerLines, err := splitHeaderBlock(block)
	if err != nil {
		return nil, err
	}

	fields := strings.Fields(startLine)
	if len(fields) != 3 {
		return nil, proxyerr.New(proxyerr.Malformed, "malformed request line: "+startLine)
	}
	rawMethod, target, proto := fields[0], fields[1], fields[2]

	headers, err := parseHeaderLines(headerLines)
	if err != nil {
		return nil, err
	}

	body, rest, err := readBody(r, headers, true)
	if err != nil {
		return nil, err
	}

	raw := append(append([]byte{}, block...), rest...)

	return &Request{
		ID:        id,
		Method:    ParseMethod(rawMethod),
		RawMethod: rawMethod,
		Target:    target,
		Proto:     proto,
		Headers:   headers,
		Body:      body,
		Raw:       raw,
	}, nil
}

// ParseResponse reads a complete HTTP response from r.
func ParseResponse(r *bufio.Reader, log *slog.Logger) (*Response, error) {
	block, err := wire.ReadHeaderBlock(r)
	if err != nil {
		return nil, err
	}

	startLine, headerLines, err := splitHeaderBlock(block)
	if err != nil {
		return nil, err
	}

	fields := strings.SplitN(startLine, " ", 3)
	if len(fields) < 2 {
		return nil, proxyerr.New(proxyerr.Malformed, "malformed status line: "+startLine)
	}
	proto := fields[0]
	statusCode, convErr := strconv.Atoi(fields[1])
	if convErr != nil || statusCode < 100 || statusCode > 599 {
		return nil, proxyerr.New(proxyerr.Malformed, "status code out of range: "+fields[1])
	}
	reason := ""
	if len(fields) == 3 {
		reason = fields[2]
	}

	headers, err := parseHeaderLines(headerLines)
	if err != nil {
		return nil, err
	}

	body, rest, err := readBody(r, headers, false)
	if err != nil {
		return nil, err
	}

	resp := &Response{
		StatusCode: statusCode,
		Reason:     reason,
		Proto:      proto,
		Headers:    headers,
		Body:       body,
		Raw:        append(append([]byte{}, block...), rest...),
	}
	resp.Derive(log)
	return resp, nil
}

// ParseResponseBytes parses a complete response held entirely in memory,
// such as the raw bytes rehydrated from a Store entry.
func ParseResponseBytes(raw []byte, log *slog.Logger) (*Response, error) {
	return ParseResponse(bufio.NewReader(bytes.NewReader(raw)), log)
}

// splitHeaderBlock splits a header block (including its trailing CRLFCRLF)
// into the start-line and the remaining header lines.
func splitHeaderBlock(block []byte) (startLine string, headerLines []string, err error) {
	trimmed := bytes.TrimSuffix(block, []byte("\r\n\r\n"))
	lines := strings.Split(string(trimmed), "\r\n")
	if len(lines) == 0 || lines[0] == "" {
		return "", nil, proxyerr.New(proxyerr.Malformed, "empty start line")
	}
	return lines[0], lines[1:], nil
}

func parseHeaderLines(lines []string) (Header, error) {
	var h Header
	seenContentLength := ""
	for _, line := range lines {
		if line == "" {
			continue
		}
		idx := strings.IndexByte(line, ':')
		if idx < 0 {
			return h, proxyerr.New(proxyerr.Malformed, "header line missing colon: "+line)
		}
		name := strings.TrimSpace(line[:idx])
		value := strings.TrimSpace(line[idx+1:])
		if strings.EqualFold(name, "Content-Length") {
			if seenContentLength != "" && seenContentLength != value {
				return h, proxyerr.New(proxyerr.Malformed, "conflicting Content-Length values")
			}
			seenContentLength = value
		}
		h.Add(name, value)
	}
	return h, nil
}

// readBody determines body framing per the parser contract: chunked wins
// over Content-Length when both are present; requests with neither framing
// header have an empty body; responses with neither read until the
// connection closes. It returns the parsed body and the body bytes used to
// build Raw: the bytes exactly as consumed for Content-Length and
// read-until-close bodies, and a single-chunk re-encoding for chunked ones.
func readBody(r *bufio.Reader, headers Header, isRequest bool) (body []byte, raw []byte, err error) {
	te := headers.Get("Transfer-Encoding")
	if strings.Contains(strings.ToLower(te), "chunked") {
		body, err = wire.ReadChunked(r)
		if err != nil {
			return nil, nil, err
		}
		return body, reencodeChunked(body), nil
	}

	if cl := headers.Get("Content-Length"); cl != "" {
		n, convErr := strconv.ParseInt(cl, 10, 64)
		if convErr != nil || n < 0 {
			return nil, nil, proxyerr.New(proxyerr.Malformed, "invalid Content-Length: "+cl)
		}
		body, err = wire.ReadExact(r, n)
		if err != nil {
			return nil, nil, err
		}
		return body, body, nil
	}

	if isRequest {
		return nil, nil, nil
	}

	body, err = wire.ReadUntilClose(r)
	if err != nil {
		return nil, nil, err
	}
	return body, body, nil
}

// reencodeChunked rebuilds a single-chunk wire encoding of an already
// dechunked body. Raw keeps the message's original header block, including
// Transfer-Encoding: chunked, so the body in Raw stays chunked to match it:
// one chunk with the whole body, then the terminating zero chunk. Chunked
// messages are therefore forwarded and re-served from the cache in this
// chunked form; they are not re-framed with Content-Length, and the
// original chunk boundaries and trailers are not kept.
func reencodeChunked(body []byte) []byte {
	if len(body) == 0 {
		return []byte("0\r\n\r\n")
	}
	var buf bytes.Buffer
	buf.WriteString(strconv.FormatInt(int64(len(body)), 16))
	buf.WriteString("\r\n")
	buf.Write(body)
	buf.WriteString("\r\n0\r\n\r\n")
	return buf.Bytes()
}
