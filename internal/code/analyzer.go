// Package code is the code-assistant surface: single-shot analyze, fix,
// explain and generate requests over the inference collaborator, plus local
// language detection and line statistics.
package code

import "strings"

// Stats summarizes a code snippet by line kind.
type Stats struct {
	Total    int `json:"total"`
	Code     int `json:"code"`
	Comments int `json:"comments"`
	Blank    int `json:"blank"`
}

// CountLines classifies each line as blank, comment or code. Comment
// detection is prefix-based and deliberately rough; block comment bodies
// without a leading marker count as code.
func CountLines(source string) Stats {
	var stats Stats

	for _, line := range strings.Split(source, "\n") {
		stats.Total++

		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "":
			stats.Blank++
		case isCommentLine(trimmed):
			stats.Comments++
		default:
			stats.Code++
		}
	}

	return stats
}

func isCommentLine(trimmed string) bool {
	for _, prefix := range []string{"//", "#", "--", "/*", "*", ";;"} {
		if strings.HasPrefix(trimmed, prefix) {
			return true
		}
	}
	return false
}

// languageMarkers are checked in order; the first language with a matching
// marker wins. More distinctive languages come first so that e.g. Go's
// ":= " is not shadowed by JavaScript's "const ".
var languageMarkers = []struct {
	language string
	markers  []string
}{
	{"go", []string{"package main", "func main(", ":= ", "go func("}},
	{"rust", []string{"fn main(", "let mut ", "println!", "impl "}},
	{"php", []string{"<?php"}},
	{"python", []string{"def ", "import ", "print(", "self.", "elif "}},
	{"java", []string{"public class ", "System.out.", "public static void"}},
	{"csharp", []string{"namespace ", "Console.WriteLine", "using System"}},
	{"cpp", []string{"#include <iostream>", "std::", "cout <<"}},
	{"c", []string{"#include <stdio.h>", "printf(", "int main("}},
	{"typescript", []string{": string", ": number", "interface ", "export type "}},
	{"javascript", []string{"function ", "const ", "console.log", "=> "}},
	{"ruby", []string{"puts ", "end\n", "require '"}},
	{"sql", []string{"SELECT ", "INSERT INTO", "CREATE TABLE"}},
	{"bash", []string{"#!/bin/bash", "#!/bin/sh", "echo "}},
	{"html", []string{"<!DOCTYPE", "<html", "<div"}},
}

// DetectLanguage guesses the snippet's language from distinctive markers.
// Returns "" when nothing matches; callers pass the guess to the model, which
// tolerates an empty tag.
func DetectLanguage(source string) string {
	for _, candidate := range languageMarkers {
		for _, marker := range candidate.markers {
			if strings.Contains(source, marker) {
				return candidate.language
			}
		}
	}
	return ""
}
