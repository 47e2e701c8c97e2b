// Package topic implements the subscription patterns of subscriber sockets.
//
// A pattern is a plain string in which "*" matches one or more characters:
//
//	orders.*      matches orders.created and orders.42.paid, not orders.
//	*.created     matches orders.created, not .created
//	a*b*c         matches aXbYc, not abc
//
// A pattern without "*" matches only the identical topic. Patterns are split
// into their literal segments once by Compile and matched by leftmost search,
// no regular expressions are involved.
package topic
