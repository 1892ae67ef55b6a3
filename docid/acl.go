package docid

// InheritanceType enumerates how an Acl composes with its inherited parent.
type InheritanceType int

const (
	// Leaf means the Acl does not inherit from a parent.
	Leaf InheritanceType = iota
	// ParentOverrides means the parent's decision wins when both the leaf
	// and the parent have an opinion on a principal.
	ParentOverrides
	// ChildOverrides means the leaf's decision wins over the parent's.
	ChildOverrides
	// AndBothPermit means both the leaf and the parent must permit.
	AndBothPermit
)

func (t InheritanceType) String() string {
	switch t {
	case Leaf:
		return "LEAF"
	case ParentOverrides:
		return "PARENT_OVERRIDES"
	case ChildOverrides:
		return "CHILD_OVERRIDES"
	case AndBothPermit:
		return "AND_BOTH_PERMIT"
	default:
		return "UNKNOWN"
	}
}

// DefaultNamespace is the principal namespace used when none is specified.
const DefaultNamespace = "Default"

// PrincipalKind distinguishes a user principal from a group principal.
type PrincipalKind int

const (
	UserKind PrincipalKind = iota
	GroupKind
)

// Principal is a named user or group, qualified by a namespace. Namespace
// and name are compared case-sensitively.
type Principal struct {
	Kind      PrincipalKind
	Name      string
	Namespace string
}

// NewUser constructs a user principal in the default namespace.
func NewUser(name string) Principal {
	return Principal{Kind: UserKind, Name: name, Namespace: DefaultNamespace}
}

// NewUserInNamespace constructs a user principal in an explicit namespace.
func NewUserInNamespace(name, namespace string) Principal {
	return Principal{Kind: UserKind, Name: name, Namespace: namespace}
}

// NewGroup constructs a group principal in the default namespace.
func NewGroup(name string) Principal {
	return Principal{Kind: GroupKind, Name: name, Namespace: DefaultNamespace}
}

// NewGroupInNamespace constructs a group principal in an explicit namespace.
func NewGroupInNamespace(name, namespace string) Principal {
	return Principal{Kind: GroupKind, Name: name, Namespace: namespace}
}

// IsUser reports whether the principal is a user.
func (p Principal) IsUser() bool { return p.Kind == UserKind }

// IsGroup reports whether the principal is a group.
func (p Principal) IsGroup() bool { return p.Kind == GroupKind }

// Equal compares two principals field-by-field, case-sensitively.
func (p Principal) Equal(other Principal) bool {
	return p.Kind == other.Kind && p.Name == other.Name && p.Namespace == other.Namespace
}

// Acl is an immutable set of permit/deny principals plus optional
// inheritance from a parent DocId.
type Acl struct {
	PermitUsers  []Principal
	DenyUsers    []Principal
	PermitGroups []Principal
	DenyGroups   []Principal

	InheritFrom     DocId
	HasInheritFrom  bool
	InheritanceType InheritanceType
}

// AclBuilder accumulates Acl fields before producing an immutable Acl.
type AclBuilder struct {
	acl Acl
}

// NewAclBuilder returns an empty builder with LEAF inheritance.
func NewAclBuilder() *AclBuilder {
	return &AclBuilder{acl: Acl{InheritanceType: Leaf}}
}

func (b *AclBuilder) SetPermitUsers(p ...Principal) *AclBuilder {
	b.acl.PermitUsers = append([]Principal{}, p...)
	return b
}

func (b *AclBuilder) SetDenyUsers(p ...Principal) *AclBuilder {
	b.acl.DenyUsers = append([]Principal{}, p...)
	return b
}

func (b *AclBuilder) SetPermitGroups(p ...Principal) *AclBuilder {
	b.acl.PermitGroups = append([]Principal{}, p...)
	return b
}

func (b *AclBuilder) SetDenyGroups(p ...Principal) *AclBuilder {
	b.acl.DenyGroups = append([]Principal{}, p...)
	return b
}

func (b *AclBuilder) SetInheritFrom(parent DocId) *AclBuilder {
	b.acl.InheritFrom = parent
	b.acl.HasInheritFrom = true
	return b
}

func (b *AclBuilder) SetInheritanceType(t InheritanceType) *AclBuilder {
	b.acl.InheritanceType = t
	return b
}

func (b *AclBuilder) Build() Acl {
	return b.acl
}

// AclItem (a.k.a. named resource) is a DocId plus an Acl that exists purely
// to anchor ACL inheritance; it carries no retrievable content.
type AclItem struct {
	DocId DocId
	Acl   Acl
}
