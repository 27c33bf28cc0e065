package mcpserver

// Conventions describes how Quill organizes notes for LLM consumers.
const Conventions = `# Quill Note Conventions

Quill keeps a two-level task tree. Top-level notes are "parents"; a note
created with parent_id is a sub-note. Notes are never removed: delete_note
marks a note deleted, hides it from every listing and leaves its sub-notes
in place. Ids are assigned in increasing order and are never reused.

## Fields

- title: required, short.
- description: free text, grown with append_description. Each call adds a
  new paragraph.
- tags: lowercase labels. Write them inline as #hashtags in appended text.
- done: set with mark_done. A note cannot be marked done while any of its
  sub-notes is still open.
- images: references returned by attach_image, served under /attachments/.

## Images

- Supported formats: png, jpg, jpeg, gif, webp.
- The content must match the declared type.
- Each note holds a limited number of images.

## Chat

The chat commands a human uses are listed in the quill://commands resource.
Chat actions ask the user to confirm; these tools do not.
`
