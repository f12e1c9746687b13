// Package handler lets a Go topic handler be written as a plain function.
//
// The wrapper owns the process boundary of the handler contract: it parses
// the --input/--output/--attachment flags, reads the input payload, runs
// the function, and writes the output document. The function returns an
// explicit Result; chaining is declared by filling Result.NextTopics.
//
//	func main() {
//	    handler.Main(func(ctx context.Context, in handler.Input) (handler.Result, error) {
//	        var payload struct{ N int `json:"n"` }
//	        if err := json.Unmarshal(in.Data, &payload); err != nil {
//	            return handler.Result{}, err
//	        }
//	        data, _ := json.Marshal(map[string]int{"n": payload.N * 2})
//	        return handler.Result{Data: data, NextTopics: []string{"transform"}}, nil
//	    })
//	}
package handler

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

// Input is what the wrapper hands the handler function.
type Input struct {
	// Data is the job's JSON payload.
	Data json.RawMessage

	// AttachmentPath points at the job's attachment artifact on disk.
	// Empty when the job carries no attachment.
	AttachmentPath string
}

// Result is the handler's declared output: the data value and the topics
// any chained jobs are created for. An empty NextTopics ends the chain.
type Result struct {
	Data       json.RawMessage `json:"data"`
	NextTopics []string        `json:"next_topics"`
}

// Func is a topic handler as a plain function.
type Func func(ctx context.Context, in Input) (Result, error)

// Main runs fn inside the handler process contract and exits the process:
// zero on success, non-zero on any failure. It never returns.
func Main(fn Func) {
	os.Exit(run(fn, os.Args[1:], os.Stderr))
}

func run(fn Func, args []string, errOut io.Writer) int {
	fs := flag.NewFlagSet("handler", flag.ContinueOnError)
	fs.SetOutput(errOut)
	inputPath := fs.String("input", "", "path to the input JSON file")
	outputPath := fs.String("output", "", "path to the output JSON file")
	attachmentPath := fs.String("attachment", "", "path to the attachment file, if any")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *inputPath == "" || *outputPath == "" {
		fmt.Fprintln(errOut, "handler: --input and --output are required")
		return 2
	}

	data, err := os.ReadFile(*inputPath)
	if err != nil {
		fmt.Fprintf(errOut, "handler: read input: %v\n", err)
		return 1
	}
	if !json.Valid(data) {
		fmt.Fprintf(errOut, "handler: input %s is not valid JSON\n", *inputPath)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	result, err := fn(ctx, Input{Data: data, AttachmentPath: *attachmentPath})
	if err != nil {
		fmt.Fprintf(errOut, "handler: %v\n", err)
		return 1
	}
	if result.Data == nil {
		result.Data = json.RawMessage("null")
	}

	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		fmt.Fprintf(errOut, "handler: marshal output: %v\n", err)
		return 1
	}
	if err := os.WriteFile(*outputPath, out, 0o644); err != nil {
		fmt.Fprintf(errOut, "handler: write output: %v\n", err)
		return 1
	}
	return 0
}
