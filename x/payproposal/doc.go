/*

Package payproposal implements multi-party approval for stream creation.

A proposal carries the full terms of a payment stream but moves no
funds. Approvers sign off one by one and the moment the configured
threshold of distinct approvals is reached the stream is created through
the paystream controller, charging fees and locking the principal as a
direct creation would. Proposals expire at their deadline and an
executed proposal is kept as a record.

*/
package payproposal
