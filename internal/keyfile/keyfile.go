// Package keyfile reads the BIND-style key clause that rndc.key and
// rndc.conf both use to carry the shared HMAC secret:
//
//	key "rndc-key" {
//	    algorithm hmac-md5;
//	    secret "c3VwZXJzZWNyZXQ=";
//	};
//
// rndc.conf additionally wraps this in options/server clauses; this
// package only concerns itself with the key clause, since that is all
// the client needs to sign a request.
package keyfile

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
)

// Key is one parsed key clause.
type Key struct {
	Name      string
	Algorithm string
	Secret    string
}

// ErrNoKeyClause is returned when a file contains no recognizable key
// clause at all.
var ErrNoKeyClause = errors.New("rndc: no key clause found")

// ReadFile parses every key clause in filename and returns them in
// file order.
func ReadFile(filename string) ([]Key, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, errors.Wrapf(err, "rndc: could not open key file %s", filename)
	}
	defer f.Close()

	keys, err := Parse(f)
	if err != nil {
		return nil, errors.Wrapf(err, "rndc: could not parse key file %s", filename)
	}
	return keys, nil
}

// ReadNamedKey reads filename and returns the key clause named name. If
// name is empty and the file contains exactly one key clause, that one
// is returned (the common rndc.key case of a single, unnamed lookup).
func ReadNamedKey(filename, name string) (*Key, error) {
	keys, err := ReadFile(filename)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, errors.Wrapf(ErrNoKeyClause, "in %s", filename)
	}
	if name == "" {
		if len(keys) == 1 {
			return &keys[0], nil
		}
		return nil, errors.Errorf("rndc: %s contains %d keys; -y is required to pick one", filename, len(keys))
	}
	for i := range keys {
		if keys[i].Name == name {
			return &keys[i], nil
		}
	}
	return nil, errors.Errorf("rndc: no key named %q in %s", name, filename)
}

// Parse reads every top-level `key "name" { ... };` clause out of r. It
// ignores comments (// and # to end of line, /* ... */ block comments) and
// any surrounding clauses (options, server, include) it doesn't recognize,
// since rndc.conf mixes the key clause in with those.
//
// A "key" token nested inside another clause is not a key clause at all --
// `server 127.0.0.1 { key "rndc-key"; };` merely references a key defined
// elsewhere by name, using the same bare-statement shape as any other
// unrecognized statement. Brace depth distinguishes the two: only a "key"
// token seen at depth 0 starts a clause to parse.
func Parse(r io.Reader) ([]Key, error) {
	toks, err := tokenize(r)
	if err != nil {
		return nil, err
	}

	var keys []Key
	depth := 0
	for i := 0; i < len(toks); i++ {
		switch toks[i] {
		case "{":
			depth++
			continue
		case "}":
			depth--
			continue
		}
		if toks[i] != "key" || depth != 0 {
			continue
		}
		k, consumed, err := parseKeyClause(toks[i:])
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
		i += consumed - 1
	}
	return keys, nil
}

// parseKeyClause parses `key "name" { algorithm ...; secret "..."; };`
// starting at toks[0] == "key", and returns how many tokens it consumed.
func parseKeyClause(toks []string) (Key, int, error) {
	i := 0
	expect := func(want string) error {
		if i >= len(toks) || toks[i] != want {
			return errors.Errorf("rndc: expected %q in key clause", want)
		}
		i++
		return nil
	}

	if err := expect("key"); err != nil {
		return Key{}, 0, err
	}
	if i >= len(toks) {
		return Key{}, 0, errors.New("rndc: truncated key clause")
	}
	name := unquote(toks[i])
	i++
	if err := expect("{"); err != nil {
		return Key{}, 0, err
	}

	var k Key
	k.Name = name
	for i < len(toks) && toks[i] != "}" {
		switch toks[i] {
		case "algorithm":
			i++
			if i >= len(toks) {
				return Key{}, 0, errors.New("rndc: truncated algorithm statement")
			}
			k.Algorithm = strings.TrimSuffix(toks[i], ";")
			i++
		case "secret":
			i++
			if i >= len(toks) {
				return Key{}, 0, errors.New("rndc: truncated secret statement")
			}
			k.Secret = unquote(strings.TrimSuffix(toks[i], ";"))
			i++
		default:
			// Skip unknown statement up to its terminating semicolon.
			for i < len(toks) && !strings.HasSuffix(toks[i], ";") {
				i++
			}
			i++
		}
	}
	if err := expect("}"); err != nil {
		return Key{}, 0, err
	}
	if i < len(toks) && toks[i] == ";" {
		i++
	}

	if k.Secret == "" {
		return Key{}, 0, errors.Errorf("rndc: key %q has no secret statement", name)
	}
	return k, i, nil
}

func unquote(s string) string {
	s = strings.TrimSuffix(s, ";")
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}

// tokenize splits the stream into whitespace-separated words, keeping
// quoted strings intact and dropping comments, so the recursive-descent
// parser above never has to think about lexical detail.
func tokenize(r io.Reader) ([]string, error) {
	br := bufio.NewReader(r)
	var toks []string
	var cur strings.Builder
	inQuote := false
	inLineComment := false
	inBlockComment := false

	flush := func() {
		if cur.Len() > 0 {
			toks = append(toks, cur.String())
			cur.Reset()
		}
	}

	var prev rune
	for {
		ch, _, err := br.ReadRune()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.WithStack(err)
		}

		if inLineComment {
			if ch == '\n' {
				inLineComment = false
			}
			prev = ch
			continue
		}
		if inBlockComment {
			if prev == '*' && ch == '/' {
				inBlockComment = false
			}
			prev = ch
			continue
		}
		if inQuote {
			cur.WriteRune(ch)
			if ch == '"' {
				inQuote = false
				flush()
			}
			prev = ch
			continue
		}

		switch {
		case ch == '"':
			flush()
			cur.WriteRune(ch)
			inQuote = true
		case ch == '/' && prev == '/':
			// already started as a token char, drop it and enter comment
			s := cur.String()
			cur.Reset()
			if len(s) > 1 {
				toks = append(toks, s[:len(s)-1])
			}
			inLineComment = true
		case ch == '*' && prev == '/':
			s := cur.String()
			cur.Reset()
			if len(s) > 1 {
				toks = append(toks, s[:len(s)-1])
			}
			inBlockComment = true
		case ch == '#':
			flush()
			inLineComment = true
		case ch == '{' || ch == '}' || ch == ';':
			flush()
			toks = append(toks, string(ch))
		case ch == ' ' || ch == '\t' || ch == '\n' || ch == '\r':
			flush()
		default:
			cur.WriteRune(ch)
		}
		prev = ch
	}
	flush()
	return toks, nil
}
