package catalogrpc

import (
	"fmt"

	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"

	"github.com/hanpama/olapcore/internal/olap"
)

// lookupRequest is the decoded form of LookupChildrenByNameRequest.
type lookupRequest struct {
	Cube   string
	Parent string
	Names  []olap.NameSegment
	Match  olap.MatchType
}

// wireMatch is one entry of LookupChildrenByNameResponse.
type wireMatch struct {
	Index   int
	Name    string
	Unique  string
	Ordinal int
}

func fieldOf(md protoreflect.MessageDescriptor, name protoreflect.Name) protoreflect.FieldDescriptor {
	return md.Fields().ByName(name)
}

func (d *Descriptors) encodeRequest(r lookupRequest) *dynamicpb.Message {
	md := d.Lookup.Input()
	msg := dynamicpb.NewMessage(md)
	msg.Set(fieldOf(md, "cube"), protoreflect.ValueOfString(r.Cube))
	msg.Set(fieldOf(md, "parent_unique_name"), protoreflect.ValueOfString(r.Parent))
	msg.Set(fieldOf(md, "match_type"), protoreflect.ValueOfString(r.Match.String()))
	list := msg.Mutable(fieldOf(md, "names")).List()
	for _, n := range r.Names {
		seg := dynamicpb.NewMessage(d.NameSegment)
		seg.Set(fieldOf(d.NameSegment, "name"), protoreflect.ValueOfString(n.Name))
		seg.Set(fieldOf(d.NameSegment, "quoting"), protoreflect.ValueOfEnum(protoreflect.EnumNumber(n.Quoting)))
		list.Append(protoreflect.ValueOfMessage(seg))
	}
	return msg
}

func (d *Descriptors) decodeRequest(msg protoreflect.Message) (lookupRequest, error) {
	md := d.Lookup.Input()
	r := lookupRequest{
		Cube:   msg.Get(fieldOf(md, "cube")).String(),
		Parent: msg.Get(fieldOf(md, "parent_unique_name")).String(),
	}
	match, err := olap.ParseMatchType(msg.Get(fieldOf(md, "match_type")).String())
	if err != nil {
		return r, err
	}
	r.Match = match
	list := msg.Get(fieldOf(md, "names")).List()
	for i := 0; i < list.Len(); i++ {
		seg := list.Get(i).Message()
		q := olap.Quoting(seg.Get(fieldOf(d.NameSegment, "quoting")).Enum())
		if q < olap.Unquoted || q > olap.Key {
			return r, fmt.Errorf("names[%d]: unknown quoting %d", i, q)
		}
		r.Names = append(r.Names, olap.NameSegment{
			Name:    seg.Get(fieldOf(d.NameSegment, "name")).String(),
			Quoting: q,
		})
	}
	return r, nil
}

func (d *Descriptors) encodeResponse(matches []wireMatch) *dynamicpb.Message {
	md := d.Lookup.Output()
	msg := dynamicpb.NewMessage(md)
	list := msg.Mutable(fieldOf(md, "matches")).List()
	for _, m := range matches {
		mem := dynamicpb.NewMessage(d.Member)
		mem.Set(fieldOf(d.Member, "name"), protoreflect.ValueOfString(m.Name))
		mem.Set(fieldOf(d.Member, "unique_name"), protoreflect.ValueOfString(m.Unique))
		mem.Set(fieldOf(d.Member, "ordinal"), protoreflect.ValueOfInt32(int32(m.Ordinal)))
		entry := dynamicpb.NewMessage(d.Match)
		entry.Set(fieldOf(d.Match, "index"), protoreflect.ValueOfInt32(int32(m.Index)))
		entry.Set(fieldOf(d.Match, "member"), protoreflect.ValueOfMessage(mem))
		list.Append(protoreflect.ValueOfMessage(entry))
	}
	return msg
}

func (d *Descriptors) decodeResponse(msg protoreflect.Message) []wireMatch {
	list := msg.Get(fieldOf(d.Lookup.Output(), "matches")).List()
	out := make([]wireMatch, 0, list.Len())
	for i := 0; i < list.Len(); i++ {
		entry := list.Get(i).Message()
		mem := entry.Get(fieldOf(d.Match, "member")).Message()
		out = append(out, wireMatch{
			Index:   int(entry.Get(fieldOf(d.Match, "index")).Int()),
			Name:    mem.Get(fieldOf(d.Member, "name")).String(),
			Unique:  mem.Get(fieldOf(d.Member, "unique_name")).String(),
			Ordinal: int(mem.Get(fieldOf(d.Member, "ordinal")).Int()),
		})
	}
	return out
}
