package mcpserver

// PostFormatContract describes the canonical Markdown post format that
// LLM consumers should follow when creating or updating posts.
const PostFormatContract = `# Ansuz Post Format Contract

Every Markdown post stored in Ansuz MUST follow this structure.

## Structure

` + "```" + `markdown
---
title: Human-readable title        # OPTIONAL – defaults to the slug
date: 2025-01-15                    # OPTIONAL – ISO-8601 date; defaults to today
tags:                               # OPTIONAL – YAML list or single string
  - tag-one
  - tag-two
description: One-line summary       # OPTIONAL – becomes the excerpt
cover: https://example.com/x.jpg    # OPTIONAL – cover image URL
author:                             # OPTIONAL – defaults to Anonymous
  name: Jane Doe
  avatar: https://example.com/a.png
---

Body text in standard Markdown.
` + "```" + `

## Rules

1. **YAML frontmatter is optional but recommended.** When present, the
   ` + "```" + `---` + "```" + ` fences must be the first thing in the file.
2. **Missing keys get generated defaults:** the title falls back to the
   slug, the date to today, the excerpt to the first 120 characters of the
   body, and cover/avatar to deterministic placeholder images.
3. **Tags** are lowercase, kebab-case (e.g. ` + "`" + `vue-router` + "`" + `, ` + "`" + `build-tools` + "`" + `).
   A single scalar value is accepted and treated as a one-element list.
4. **Slugs** are derived from the file name stem and must be URL-safe.
   File names end with ` + "`" + `.md` + "`" + ` and live flat in the posts directory.
5. **Code blocks, images, and raw HTML** are excluded from search, so do
   not rely on them for discoverability.
6. **Encoding** is UTF-8 with a trailing newline. Body content may use any
   language including CJK; search handles both.

## Covers

- Upload cover images via ` + "`" + `POST /api/covers` + "`" + `; the response URL is ready to
  paste into the ` + "`" + `cover` + "`" + ` frontmatter key.
- Reference with the absolute path: ` + "`" + `/covers/filename.jpg` + "`" + `.

## Example

` + "```" + `markdown
---
title: Vue Router 4 in practice
date: 2025-01-20
tags:
  - vue
  - routing
description: Field notes from migrating a large app to Vue Router 4.
---

# Vue Router 4 in practice

Migration notes and the traps we hit along the way.
` + "```" + `
`
