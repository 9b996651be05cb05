package catalogrpc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jhump/protoreflect/v2/protobuilder"
	"google.golang.org/protobuf/reflect/protoreflect"
)

const (
	// Package is the protobuf package of the catalog service.
	Package = "olapcore.catalog.v1"
	// ServiceName is the fully-qualified gRPC service name.
	ServiceName = Package + ".Catalog"
	// FilePath is the path of the generated .proto file.
	FilePath = "olapcore/catalog/v1/catalog.proto"

	methodLookup = "LookupChildrenByName"
)

// Descriptors holds the service and message descriptors the client and
// server exchange dynamic messages with.
type Descriptors struct {
	File    protoreflect.FileDescriptor
	Service protoreflect.ServiceDescriptor
	Lookup  protoreflect.MethodDescriptor

	NameSegment protoreflect.MessageDescriptor
	Member      protoreflect.MessageDescriptor
	Match       protoreflect.MessageDescriptor
}

var describe = sync.OnceValues(build)

// Describe returns the catalog service descriptors. They are built once.
func Describe() (*Descriptors, error) { return describe() }

func comment(desc string) protobuilder.Comments {
	if desc == "" {
		return protobuilder.Comments{}
	}
	lines := strings.Split(desc, "\n")
	for i, line := range lines {
		lines[i] = " " + line
	}
	return protobuilder.Comments{LeadingComment: strings.Join(lines, "\n") + "\n"}
}

type field struct {
	name     protoreflect.Name
	typ      *protobuilder.FieldType
	repeated bool
	doc      string
}

func message(name protoreflect.Name, doc string, fields ...field) *protobuilder.MessageBuilder {
	mb := protobuilder.NewMessage(name)
	mb.SetComments(comment(doc))
	fbs := make([]*protobuilder.FieldBuilder, 0, len(fields))
	for _, f := range fields {
		fb := protobuilder.NewField(f.name, f.typ)
		fb.SetComments(comment(f.doc))
		if f.repeated {
			fb.SetRepeated()
		}
		mb.AddField(fb)
		fbs = append(fbs, fb)
	}
	allocateFieldNumbers(fbs)
	return mb
}

func build() (*Descriptors, error) {
	str := func() *protobuilder.FieldType { return protobuilder.FieldTypeScalar(protoreflect.StringKind) }
	i32 := func() *protobuilder.FieldType { return protobuilder.FieldTypeScalar(protoreflect.Int32Kind) }

	quoting := protobuilder.NewEnum("Quoting")
	quoting.SetComments(comment("How a name segment was written in the query."))
	for i, v := range []protoreflect.Name{"QUOTING_UNQUOTED", "QUOTING_QUOTED", "QUOTING_KEY"} {
		evb := protobuilder.NewEnumValue(v)
		evb.SetNumber(protoreflect.EnumNumber(i))
		quoting.AddValue(evb)
	}

	segment := message("NameSegment", "One component of an identifier.",
		field{name: "name", typ: str()},
		field{name: "quoting", typ: protobuilder.FieldTypeEnum(quoting)},
	)
	member := message("Member", "A member found under the requested parent.",
		field{name: "name", typ: str()},
		field{name: "unique_name", typ: str()},
		field{name: "ordinal", typ: i32(), doc: "Position among the parent's children."},
	)
	match := message("Match", "A requested name and the member it matched.",
		field{name: "index", typ: i32(), doc: "Index into LookupChildrenByNameRequest.names."},
		field{name: "member", typ: protobuilder.FieldTypeMessage(member)},
	)
	request := message("LookupChildrenByNameRequest", "Resolves names among the children of one parent.",
		field{name: "cube", typ: str()},
		field{name: "parent_unique_name", typ: str()},
		field{name: "names", typ: protobuilder.FieldTypeMessage(segment), repeated: true},
		field{name: "match_type", typ: str(), doc: "exact, exact_schema, before, after or any."},
	)
	response := message("LookupChildrenByNameResponse", "Matched names. Names without a match are absent.",
		field{name: "matches", typ: protobuilder.FieldTypeMessage(match), repeated: true},
	)

	svc := protobuilder.NewService("Catalog")
	svc.SetComments(comment("Catalog serves member lookups for OLAP identifier resolution."))
	mth := protobuilder.NewMethod(methodLookup,
		protobuilder.RpcTypeMessage(request, false),
		protobuilder.RpcTypeMessage(response, false),
	)
	mth.SetComments(comment("Bulk children-by-name lookup. One call per parent."))
	svc.AddMethod(mth)

	fb := protobuilder.NewFile(FilePath)
	fb.SetPackageName(Package)
	fb.SetSyntax(protoreflect.Proto3)
	fb.AddEnum(quoting)
	for _, mb := range []*protobuilder.MessageBuilder{segment, member, match, request, response} {
		fb.AddMessage(mb)
	}
	fb.AddService(svc)

	fd, err := fb.Build()
	if err != nil {
		return nil, fmt.Errorf("catalogrpc: build descriptor: %w", err)
	}
	sd := fd.Services().ByName("Catalog")
	return &Descriptors{
		File:        fd,
		Service:     sd,
		Lookup:      sd.Methods().ByName(methodLookup),
		NameSegment: fd.Messages().ByName("NameSegment"),
		Member:      fd.Messages().ByName("Member"),
		Match:       fd.Messages().ByName("Match"),
	}, nil
}
