package mcpserver

// RecordFormatContract describes metadata records and how LLM consumers
// should write them.
const RecordFormatContract = `# DesignTrail Record Format Contract

Every design element (a layer, frame or component of the design document)
can carry one metadata record describing where it came from.

## Fields

| Field          | Type            | Notes                                              |
|----------------|-----------------|----------------------------------------------------|
| sourceUrl      | string          | Where the asset or idea came from. Up to 2048 chars. |
| tags           | list of strings | Short labels, 1-64 chars each. Order is kept.      |
| notes          | string          | Free text, up to 64 KiB.                           |
| lastModified   | integer         | Epoch milliseconds, set by the server on save.     |

## Drafts and saved records

1. **save_draft** writes an unsaved draft. Drafts never show up in
   list_elements or list_tags.
2. **save_metadata** writes the saved record and removes the draft.
3. **get_metadata** shows the draft when one exists (kind "draft"),
   otherwise the saved record (kind "saved"), otherwise kind "none".

## Rules

1. **Address elements by node_id**, exactly as returned by list_elements or
   get_metadata. Unknown ids are rejected.
2. **Tags** are trimmed; blank and duplicate tags are dropped.
   Prefer lowercase kebab-case (` + "`" + `brand-assets` + "`" + `, ` + "`" + `hero-image` + "`" + `).
3. **Reuse existing tags.** Call list_tags with a prefix before inventing a
   new one.
4. **Concurrency:** pass the checksum from get_metadata as if_match to
   save_metadata; the save fails if someone else changed the record.
5. **Send the full record.** Saves replace the record; omitted fields are
   cleared.

## Example

` + "```" + `json
{
  "sourceUrl": "https://unsplash.com/photos/abc123",
  "tags": ["hero-image", "photography"],
  "notes": "Licensed for web use until 2027."
}
` + "```" + `
`
