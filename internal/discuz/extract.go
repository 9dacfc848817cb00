package discuz

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/antchfx/htmlquery"
)

var (
	formhashPattern  = regexp.MustCompile(`<input type="hidden" name="formhash" value="(.+?)" />`)
	loginhashPattern = regexp.MustCompile(`<div id="main_messaqge_(.+?)">`)
	updatePattern    = regexp.MustCompile(`update=(.+?)&idhash=`)
)

const (
	formhashXPath  = `//input[@name='formhash']`
	loginhashXPath = `//div[starts-with(@id,'main_messaqge_')]`
	loginhashIDPre = "main_messaqge_"
)

// LoginTokens are the two identifiers carried by one login page view.
type LoginTokens struct {
	Formhash  string
	Loginhash string
}

// ExtractLoginTokens pulls formhash and loginhash out of one login page.
func ExtractLoginTokens(page string) (LoginTokens, error) {
	formhash, err := ExtractFormhash(page)
	if err != nil {
		return LoginTokens{}, err
	}
	loginhash, err := extractLoginhash(page)
	if err != nil {
		return LoginTokens{}, err
	}
	return LoginTokens{Formhash: formhash, Loginhash: loginhash}, nil
}

// ExtractFormhash returns the hidden formhash input's value. The literal
// markup the forum emits is matched first; otherwise the page is parsed as
// HTML so attribute order and quoting do not matter.
func ExtractFormhash(page string) (string, error) {
	if m := formhashPattern.FindStringSubmatch(page); m != nil {
		return m[1], nil
	}
	if v := queryAttr(page, formhashXPath, "value"); v != "" {
		return v, nil
	}
	return "", fmt.Errorf("%w: formhash", ErrTokenNotFound)
}

func extractLoginhash(page string) (string, error) {
	if m := loginhashPattern.FindStringSubmatch(page); m != nil {
		return m[1], nil
	}
	if id := queryAttr(page, loginhashXPath, "id"); id != "" {
		if hash := strings.TrimPrefix(id, loginhashIDPre); hash != "" {
			return hash, nil
		}
	}
	return "", fmt.Errorf("%w: loginhash", ErrTokenNotFound)
}

// ExtractSeccodeUpdate returns the rotation parameter embedded in the
// seccode update script.
func ExtractSeccodeUpdate(text string) (string, error) {
	if m := updatePattern.FindStringSubmatch(text); m != nil {
		return m[1], nil
	}
	return "", fmt.Errorf("%w: seccode update", ErrTokenNotFound)
}

func queryAttr(page, xpath, attr string) string {
	doc, err := htmlquery.Parse(strings.NewReader(page))
	if err != nil {
		return ""
	}
	node, err := htmlquery.Query(doc, xpath)
	if err != nil || node == nil {
		return ""
	}
	return strings.TrimSpace(htmlquery.SelectAttr(node, attr))
}
