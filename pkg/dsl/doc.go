/*
Package dsl builds weft graphs in Go.

It is an alternative to hand-written graph JSON for tests, demos and graphs
generated by programs. Nodes take their label, icon and default config from
the catalog, so a built graph looks like one made in the editor.

Example usage:

	b := dsl.New()

	b.Add("watch", domain.TypeTelegramReceive).
		Set("checkInterval", "30").
		To("notify", "archive")

	b.Add("notify", domain.TypeTelegramSend).
		At(300, 0).
		Set("chatId", "42").
		Set("message", "new file received")

	b.Add("archive", domain.TypeArweaveUpload).
		At(300, 150)

	g, err := b.Build()
	// ... wf.Graph().Replace(g)
*/
package dsl
