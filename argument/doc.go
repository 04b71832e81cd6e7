// Package argument turns entities into placeholder values and renders
// argument templates with them.
//
// Templates use single-brace placeholders, {name}, with {{ and }} as literal
// braces. A template is parsed once, when the owning tool is registered, and
// its placeholder names are checked against the names the tool declares.
//
//	tpl := argument.MustParseTemplate("-w {wordlist} -u {url}")
//	out, err := tpl.Format(argument.Values{"wordlist": "/lists/common.txt", "url": "http://10.0.0.1:80"})
//
// Format strips empty values before substituting, so a placeholder bound to
// an empty value is reported as missing rather than rendered as "".
// Every substituted value stays one argument: Format quotes values that
// would otherwise split or break the argument string.
package argument
