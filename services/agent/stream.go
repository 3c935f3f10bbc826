// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package agent

import (
	"github.com/AleutianAI/AleutianData/services/orchestrator/datatypes"
)

// deltaChunkRunes is the target size of one text_delta payload. Chunks break
// at the last space inside the window when one exists, so words are not split
// mid-way on the wire.
const deltaChunkRunes = 48

// StreamText emits a message as a sequence of text_delta events followed by
// one text event carrying the full content. Clients that render progressively
// consume the deltas; clients that do not simply wait for the text event.
//
// The final text event is emitted even when the message fits in one chunk, so
// consumers can rely on exactly one text event per streamed message.
func StreamText(sink EventSink, text string) {
	for _, chunk := range splitDeltas(text, deltaChunkRunes) {
		sink.Send(datatypes.NewAgentEvent(datatypes.EventTextDelta).WithText(chunk))
	}
	sink.Send(datatypes.NewAgentEvent(datatypes.EventText).WithText(text))
}

func splitDeltas(text string, size int) []string {
	if text == "" {
		return nil
	}
	runes := []rune(text)
	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= size {
			chunks = append(chunks, string(runes))
			break
		}
		cut := size
		for i := size; i > size/2; i-- {
			if runes[i-1] == ' ' || runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		chunks = append(chunks, string(runes[:cut]))
		runes = runes[cut:]
	}
	return chunks
}
