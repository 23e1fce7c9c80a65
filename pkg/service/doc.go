/*
Package service exposes a Document over a JSON-lines stream.

Each input line is one action:

	{"type": "addEmptyBody", "payload": {"name": "Bracket"}}

and produces exactly one response line:

	{"type": "addEmptyBody", "handled": true, "stores": {"brep": "Store { model: ... }"}}

Blank lines are skipped; "exit", "quit" or EOF end the stream. A line that
cannot be decoded yields a response carrying only "error", and the loop
continues.

# Usage

	svc := service.New(doc, service.WithSession(manager, "main"))
	if err := svc.Run(ctx, os.Stdin, os.Stdout); err != nil {
		log.Fatal(err)
	}
*/
package service
