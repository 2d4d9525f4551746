// Package graph replies to new alerts with charts of the items the alert is about.
//
// Each profile pairs description keywords with a way of picking the item:
// a name search, or the best word overlap among items carrying a marker.
package graph
