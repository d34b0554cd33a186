// Package component holds the component handler registry of the dev loop.
//
// A component is a pluggable unit of project functionality with its own
// local-dev handling. Each component is declared by a [Descriptor] whose
// HandlerRef is resolved once, at [Load], through a [Resolver] such as the
// [Catalog]. The resolved handler may implement any subset of the optional
// capability interfaces [RouteSetter], [ChangeHandler] and [Cleaner]; the
// registry records which ones are present in a [Capabilities] value and
// never invokes an absent capability.
//
// A loaded [Registry] is immutable. Failures inside a single handler are
// logged and treated as "no opinion" so that sibling handlers keep working.
package component
