// Package project converts raw feed items into the canonical attribute map the
// engine stores and diffs. It is the only place the raw provider shape is
// interpreted; everything downstream treats items as opaque maps.
package project

import (
	"fmt"

	"github.com/oeg-upm/telegram-dataset-builder/internal/item"
)

// Raw attribute names interpreted during projection.
const (
	rawMedia     = "media"
	rawReplies   = "replies"
	rawReplyTo   = "reply_to"
	rawReactions = "reactions"
	rawForward   = "fwd_from"
	mediaWebPage = "web_page"
)

// Project normalizes a raw feed item into its canonical attribute map and
// returns the item's identity key alongside it. Overrides are merged last and
// win over projected attributes; the engine uses them to stamp
// tracker_retrieved. The function is pure: identical inputs always produce
// identical output.
func Project(raw item.Item, overrides map[string]any) (string, item.Item) {
	out := raw.Clone()

	// Canonical chat reference. Raw payloads name it channel_id.
	chatID, _ := raw.ChatID()
	out[item.FieldChatID] = chatID

	projectMedia(raw, out)
	projectReplies(raw, out)
	projectReactions(raw, out)
	projectForward(raw, out)

	for k, v := range overrides {
		out[k] = v
	}

	itemID, _ := raw.ID()

	return item.IdentityKey(chatID, itemID), out
}

// projectMedia flattens the media attachment to its type plus, for web pages,
// the link card fields.
func projectMedia(raw, out item.Item) {
	media, ok := raw[rawMedia].(map[string]any)
	if !ok {
		return
	}

	mediaType, _ := media["type"].(string)
	out["media_type"] = mediaType

	if mediaType != mediaWebPage {
		out[rawMedia] = mediaType

		return
	}

	webpage, _ := media["webpage"].(map[string]any)
	flat := map[string]any{
		"url":         nil,
		"site_name":   nil,
		"title":       nil,
		"description": nil,
	}

	for k := range flat {
		if v, ok := webpage[k]; ok {
			flat[k] = v
		}
	}

	out[rawMedia] = flat
}

// projectReplies reduces the replies object to its count and the reply_to
// object to the replied-to message id.
func projectReplies(raw, out item.Item) {
	if replies, ok := raw[rawReplies].(map[string]any); ok {
		out[rawReplies] = replies["replies"]
	}

	if replyTo, ok := raw[rawReplyTo].(map[string]any); ok {
		out[rawReplyTo] = replyTo["reply_to_msg_id"]
	}
}

// projectReactions regroups the reaction result list by reaction kind, keyed
// by emoticon (or custom emoji document id) with the observed count.
func projectReactions(raw, out item.Item) {
	grouped := map[string]any{}

	reactions, ok := raw[rawReactions].(map[string]any)
	if !ok {
		out[rawReactions] = grouped

		return
	}

	results, _ := reactions["results"].([]any)
	for _, entry := range results {
		result, ok := entry.(map[string]any)
		if !ok {
			continue
		}

		reaction, _ := result["reaction"].(map[string]any)
		kind, _ := reaction["type"].(string)

		if kind == "" {
			continue
		}

		key, ok := reaction["emoticon"].(string)
		if !ok {
			key = fmt.Sprint(reaction["document_id"])
		}

		byKind, _ := grouped[kind].(map[string]any)
		if byKind == nil {
			byKind = map[string]any{}
			grouped[kind] = byKind
		}

		byKind[key] = map[string]any{
			"count": result["count"],
		}
	}

	out[rawReactions] = grouped
}

// projectForward flattens forward provenance to the fields worth keeping.
func projectForward(raw, out item.Item) {
	forward, ok := raw[rawForward].(map[string]any)
	if !ok {
		return
	}

	flat := map[string]any{}

	if v, ok := forward["channel_post"]; ok {
		flat["forwarded_message_id"] = v
	}

	if v, ok := forward["date"]; ok {
		flat["forwarded_message_date"] = v
	}

	if from, ok := forward["from_id"].(map[string]any); ok {
		if v, ok := from["user_id"]; ok {
			flat["user_id"] = v
		}

		if v, ok := from["channel_id"]; ok {
			flat["channel_id"] = v
		}
	}

	if chat, ok := forward["chat"].(map[string]any); ok {
		if v, ok := chat["title"]; ok {
			flat["channel_title"] = v
		}

		if v, ok := chat["date"]; ok {
			flat["channel_created"] = v
		}

		if v, ok := chat["username"]; ok {
			out["channel_name"] = v
		}
	}

	out[rawForward] = flat
}
