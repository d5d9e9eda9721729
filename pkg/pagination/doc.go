// Package pagination drives e621 listings one rate-limited request at a time.
//
// Two drivers are provided:
//
//   - Cursor walks a search listing page by page. After each page it moves
//     the "page" marker past the records it has seen: "b<id>" for the default
//     id-descending order, "a<id>" for id-ascending and a page number for any
//     other ordering.
//   - Chunker resolves an explicit id list by splitting it into batches of at
//     most 320 ids and yielding one result per input id, in input order.
//
// Both expose lazy iter.Seq2 sequences. A request is issued only when the
// consumer asks for an element beyond what has already been fetched, so
// breaking out of a range loop stops all further traffic.
//
// Example usage:
//
//	cursor := pagination.NewCursor(fetcher, pagination.CursorConfig{Max: 500})
//	for post, err := range cursor.All(ctx) {
//		if err != nil {
//			return err
//		}
//		fmt.Println(post)
//	}
package pagination
