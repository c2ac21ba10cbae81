// Command protocolschema prints JSON schemas for the agent socket and
// transcription token messages.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/bytedance/sonic"
	"github.com/invopop/jsonschema"
	"github.com/koscakluka/ema-sphere/core/agent"
	"github.com/koscakluka/ema-sphere/core/speechtotext"
)

var only = flag.String("message", "", "print only the named message schema")

func main() {
	flag.Parse()

	schemas := protocolSchemas()
	var out any = schemas
	if *only != "" {
		schema, ok := schemas[*only]
		if !ok {
			fmt.Fprintf(os.Stderr, "protocolschema: unknown message %q\n", *only)
			os.Exit(2)
		}
		out = schema
	}

	encoded, err := sonic.ConfigStd.MarshalIndent(out, "", "  ")
	if err != nil {
		fmt.Fprintln(os.Stderr, "protocolschema:", err)
		os.Exit(1)
	}
	fmt.Println(string(encoded))
}

func protocolSchemas() map[string]*jsonschema.Schema {
	reflector := jsonschema.Reflector{DoNotReference: true}

	return map[string]*jsonschema.Schema{
		"user_message":          reflector.Reflect(&agent.UserMessage{}),
		agent.TypeConnectionAck: reflector.Reflect(&agent.ConnectionAck{}),
		agent.TypeAudioChunk:    reflector.Reflect(&agent.AudioChunk{}),
		agent.TypeAudioComplete: reflector.Reflect(&agent.AudioComplete{}),
		agent.TypeAgentResponse: reflector.Reflect(&agent.AgentResponse{}),
		agent.TypeError:         reflector.Reflect(&agent.ErrorMessage{}),
		"stt_token":             reflector.Reflect(&speechtotext.Token{}),
	}
}
