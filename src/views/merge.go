package views

import "bytes"

/*
Splices several serialized views into a single JSON array, in the order
given. The fragments are opaque; no re-parse, no re-marshal. Used when a
group-split topic's visible set spans more than one topic and the response
carries one combined tree.
*/
func MergeSerialized(fragments [][]byte) []byte {
	var parts [][]byte
	for _, f := range fragments {
		inner := bytes.TrimSpace(f)
		if len(inner) < 2 {
			continue
		}
		inner = bytes.TrimSpace(inner[1 : len(inner)-1]) // strip [ ]
		if len(inner) == 0 {
			continue
		}
		parts = append(parts, inner)
	}

	merged := make([]byte, 0, 2)
	merged = append(merged, '[')
	merged = append(merged, bytes.Join(parts, []byte(","))...)
	merged = append(merged, ']')
	return merged
}
