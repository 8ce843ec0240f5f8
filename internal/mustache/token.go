package mustache

import (
	"fmt"
	"strings"
)

// TokenKind identifies the type of a parsed template token
type TokenKind int

const (
	// Text is literal template text between tags
	Text TokenKind = iota
	// Variable is an interpolation tag ({{name}})
	Variable
	// Section is a truthy/iterable block ({{#name}}...{{/name}})
	Section
	// Inverted is a falsy block ({{^name}}...{{/name}})
	Inverted
	// Partial is a sub-template reference ({{>name}})
	Partial
	// Comment is an ignored annotation ({{!text}})
	Comment
)

// Token is one node of the parsed template tree. Section and Inverted
// tokens carry their block body in Children.
type Token struct {
	Kind     TokenKind
	Text     string // literal text, or comment body
	Name     string // tag name for Variable/Section/Inverted/Partial
	Children []Token
}

const (
	openDelim  = "{{"
	closeDelim = "}}"
)

// Parse tokenizes template source into a token tree
func Parse(src string) ([]Token, error) {
	p := &parser{src: src}
	tokens, err := p.parseBlock("")
	if err != nil {
		return nil, err
	}
	if p.pos < len(p.src) {
		return nil, fmt.Errorf("unexpected section close at offset %d", p.pos)
	}
	return tokens, nil
}

type parser struct {
	src string
	pos int
}

// parseBlock consumes tokens until EOF or the close tag for section.
// An empty section name means top level (EOF terminates the block).
func (p *parser) parseBlock(section string) ([]Token, error) {
	tokens := make([]Token, 0)

	for p.pos < len(p.src) {
		open := strings.Index(p.src[p.pos:], openDelim)
		if open < 0 {
			tokens = append(tokens, Token{Kind: Text, Text: p.src[p.pos:]})
			p.pos = len(p.src)
			break
		}
		if open > 0 {
			tokens = append(tokens, Token{Kind: Text, Text: p.src[p.pos : p.pos+open]})
		}
		p.pos += open

		tag, err := p.readTag()
		if err != nil {
			return nil, err
		}

		switch {
		case strings.HasPrefix(tag, "#"):
			name := strings.TrimSpace(tag[1:])
			children, err := p.parseBlock(name)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, Token{Kind: Section, Name: name, Children: children})
		case strings.HasPrefix(tag, "^"):
			name := strings.TrimSpace(tag[1:])
			children, err := p.parseBlock(name)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, Token{Kind: Inverted, Name: name, Children: children})
		case strings.HasPrefix(tag, "/"):
			name := strings.TrimSpace(tag[1:])
			if section == "" {
				return nil, fmt.Errorf("unexpected close tag {{/%s}}", name)
			}
			if name != section {
				return nil, fmt.Errorf("mismatched close tag {{/%s}}, expected {{/%s}}", name, section)
			}
			return tokens, nil
		case strings.HasPrefix(tag, ">"):
			tokens = append(tokens, Token{Kind: Partial, Name: strings.TrimSpace(tag[1:])})
		case strings.HasPrefix(tag, "!"):
			tokens = append(tokens, Token{Kind: Comment, Text: strings.TrimSpace(tag[1:])})
		case strings.HasPrefix(tag, "&"):
			tokens = append(tokens, Token{Kind: Variable, Name: strings.TrimSpace(tag[1:])})
		default:
			tokens = append(tokens, Token{Kind: Variable, Name: strings.TrimSpace(tag)})
		}
	}

	if section != "" {
		return nil, fmt.Errorf("unclosed section {{#%s}}", section)
	}
	return tokens, nil
}

// readTag consumes one {{...}} tag at the current position and returns
// its inner text. Triple-brace tags ({{{name}}}) are reduced to their name.
func (p *parser) readTag() (string, error) {
	inner := p.pos + len(openDelim)
	if inner < len(p.src) && p.src[inner] == '{' {
		end := strings.Index(p.src[inner:], "}"+closeDelim)
		if end < 0 {
			return "", fmt.Errorf("unterminated tag at offset %d", p.pos)
		}
		tag := p.src[inner+1 : inner+end]
		p.pos = inner + end + 3
		return strings.TrimSpace(tag), nil
	}

	end := strings.Index(p.src[inner:], closeDelim)
	if end < 0 {
		return "", fmt.Errorf("unterminated tag at offset %d", p.pos)
	}
	tag := p.src[inner : inner+end]
	p.pos = inner + end + len(closeDelim)
	return strings.TrimSpace(tag), nil
}
